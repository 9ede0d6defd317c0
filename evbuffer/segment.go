package evbuffer

import (
	"github.com/bytedance/gopkg/lang/dirtmake"
)

// minSegmentSize is the smallest capacity a freshly allocated segment is
// given, matching the teacher pack's LinkBufferCap convention of never
// allocating tiny nodes.
const minSegmentSize = 256

// segmentFlags is the bitset described in spec §3.
type segmentFlags uint8

const (
	flagPinned      segmentFlags = 1 << iota // MEMORY_PINNED: externally referenced, never copied from by pullup
	flagImmutable                            // IMMUTABLE: cannot append
	flagFileSegment                          // FILESEGMENT: backed by an fd, opaque to pullup/remove
)

// segment is a chain link: a contiguous byte region, or an externally
// referenced region, or a file-backed extent.
type segment struct {
	buf      []byte // nil for file segments
	bufLen   int    // capacity in bytes (len(buf) for owned/pinned segments)
	misalign int    // leading drained bytes
	off      int    // live bytes following misalign

	flags segmentFlags

	cleanup    func(arg any)
	cleanupArg any

	// file segment fields, valid only when flagFileSegment is set.
	fd       int
	fileOff  int64
	fileLen  int64
	fileBase int64 // original offset, for diagnostics

	next *segment
}

func (s *segment) isPinned() bool      { return s.flags&flagPinned != 0 }
func (s *segment) isImmutable() bool   { return s.flags&flagImmutable != 0 }
func (s *segment) isFileSegment() bool { return s.flags&flagFileSegment != 0 }

// len returns the number of live bytes in the segment.
func (s *segment) len() int { return s.off }

// avail returns the number of bytes that can be appended without
// reallocating, i.e. the free tail space after misalign+off.
func (s *segment) avail() int {
	if s.isFileSegment() || s.isPinned() || s.isImmutable() {
		return 0
	}
	return s.bufLen - (s.misalign + s.off)
}

// live returns the slice of currently-readable bytes.
func (s *segment) live() []byte {
	if s.isFileSegment() {
		return nil
	}
	return s.buf[s.misalign : s.misalign+s.off]
}

// writableTail returns the slice immediately after the live range, sized
// to the segment's available capacity. Callers write into it and then
// extend off (or, for a reservation, call CommitSpace).
func (s *segment) writableTail() []byte {
	start := s.misalign + s.off
	return s.buf[start:s.bufLen]
}

// release runs the segment's cleanup (pinned memory) or closes its fd
// (file segment) exactly once, and drops the owned buffer.
func (s *segment) release() {
	if s.cleanup != nil {
		cb, arg := s.cleanup, s.cleanupArg
		s.cleanup = nil
		cb(arg)
	}
	if s.isFileSegment() && s.fd >= 0 {
		closeFD(s.fd)
		s.fd = -1
	}
	s.buf = nil
}

// nextPow2 rounds n up to the next power of two, clamped to
// minSegmentSize.
func nextPow2(n int) int {
	if n < minSegmentSize {
		return minSegmentSize
	}
	p := minSegmentSize
	for p < n {
		p <<= 1
	}
	return p
}

// newSegment allocates an owned segment with capacity >= n (rounded up to
// a power of two, per spec §4.1's allocation policy).
func newSegment(n int) *segment {
	cap := nextPow2(n)
	return &segment{
		buf:    dirtmake.Bytes(cap, cap),
		bufLen: cap,
	}
}

// newReferenceSegment wraps externally owned memory. The segment is
// MEMORY_PINNED: pullup never copies out of it, and cleanup runs exactly
// once when the segment is fully drained or the buffer is destroyed.
func newReferenceSegment(data []byte, cleanup func(arg any), arg any) *segment {
	return &segment{
		buf:        data,
		bufLen:     len(data),
		off:        len(data),
		flags:      flagPinned,
		cleanup:    cleanup,
		cleanupArg: arg,
	}
}

// newFileSegment wraps an (fd, offset, length) extent. Ownership of fd
// transfers to the segment, which closes it exactly once on release.
func newFileSegment(fd int, offset, length int64) *segment {
	return &segment{
		off:      int(length),
		bufLen:   int(length),
		flags:    flagFileSegment,
		fd:       fd,
		fileOff:  offset,
		fileLen:  length,
		fileBase: offset,
	}
}

// reallocate grows an owned, non-pinned, non-file segment in place to at
// least newCap bytes, preserving its live range.
func (s *segment) reallocate(newCap int) {
	newCap = nextPow2(newCap)
	nb := dirtmake.Bytes(newCap, newCap)
	copy(nb, s.buf[s.misalign:s.misalign+s.off])
	s.buf = nb
	s.bufLen = newCap
	s.misalign = 0
}
