package evbuffer

import "bytes"

// bytesIndexByte scans a single segment's live range for the next
// occurrence of c, the same fast-path primitive netpoll's own
// single-segment index helper uses.
func bytesIndexByte(live []byte, c byte) int {
	return bytes.IndexByte(live, c)
}

// Ptr is a stable, cross-segment position into a Buffer (spec §4.3).
// Pos is the absolute byte offset from the current head. The segment and
// intra-segment offset are cached for O(1) forward advances; the cache
// is checked against the buffer's generation counter and recomputed on
// mismatch, so a Ptr remains usable (at the cost of a rescan) across any
// mutation, including ones that invalidate the fast path.
type Ptr struct {
	Pos int64

	seg        *segment
	segOff     int
	generation int64
}

// locate walks the chain from the head to find the segment and
// intra-segment offset holding absolute position pos. Callers hold the
// lock. pos == totalLen returns (nil, 0), the end-of-buffer sentinel.
func (b *Buffer) locate(pos int64) (*segment, int) {
	remain := pos
	for s := b.head; s != nil; s = s.next {
		l := int64(s.len())
		if remain < l {
			return s, int(remain)
		}
		remain -= l
	}
	return nil, 0
}

// PtrSet positions ptr at absolute offset pos, which must satisfy
// 0 <= pos <= Len().
func (b *Buffer) PtrSet(ptr *Ptr, pos int64) error {
	b.lock()
	defer b.unlock()
	if pos < 0 || pos > b.totalLen {
		return ErrBadArgument
	}
	seg, off := b.locate(pos)
	ptr.Pos = pos
	ptr.seg = seg
	ptr.segOff = off
	ptr.generation = b.generation
	return nil
}

// PtrAdd advances ptr by delta bytes, which may be negative. The result
// must stay within [0, Len()]. When ptr's cache is still current and
// delta is non-negative, the advance walks forward from the cached
// segment instead of rescanning from the head.
func (b *Buffer) PtrAdd(ptr *Ptr, delta int64) error {
	b.lock()
	defer b.unlock()
	newPos := ptr.Pos + delta
	if newPos < 0 || newPos > b.totalLen {
		return ErrBadArgument
	}
	if delta >= 0 && ptr.generation == b.generation && ptr.seg != nil {
		s := ptr.seg
		off := ptr.segOff + int(delta)
		for s != nil && off >= s.len() {
			off -= s.len()
			s = s.next
		}
		ptr.seg = s
		ptr.segOff = off
		ptr.Pos = newPos
		return nil
	}
	seg, off := b.locate(newPos)
	ptr.Pos = newPos
	ptr.seg = seg
	ptr.segOff = off
	ptr.generation = b.generation
	return nil
}

// byteAt returns the byte at (seg, off); seg must be non-nil and off <
// seg.len().
func byteAt(seg *segment, off int) byte {
	return seg.live()[off]
}

// firstLive returns the first segment at or after seg that holds at
// least one live byte, or nil if none remain. Scans that start a cursor
// at (b.head, 0) must pass through this first: a stale empty segment
// (e.g. the staging head left behind by AddReference/AddFile) otherwise
// makes byteAt(seg, 0) index past the end of an empty live() slice.
func firstLive(seg *segment) *segment {
	for seg != nil && seg.len() == 0 {
		seg = seg.next
	}
	return seg
}

// advanceCursor steps (seg, off) forward by one live byte.
func advanceCursor(seg *segment, off int) (*segment, int) {
	off++
	for seg != nil && off >= seg.len() {
		off = 0
		seg = seg.next
	}
	return seg, off
}

// matchWindow reports whether the m bytes starting at (seg, off) equal
// what, stepping across segment boundaries as needed.
func matchWindow(seg *segment, off int, what []byte) bool {
	i := 0
	for i < len(what) {
		if seg == nil {
			return false
		}
		avail := seg.len() - off
		if avail <= 0 {
			seg, off = seg.next, 0
			continue
		}
		n := avail
		if rest := len(what) - i; n > rest {
			n = rest
		}
		live := seg.live()[off : off+n]
		for j := 0; j < n; j++ {
			if live[j] != what[i+j] {
				return false
			}
		}
		i += n
		off += n
		if seg != nil && off >= seg.len() {
			seg, off = seg.next, 0
		}
	}
	return true
}

// Search scans forward from start (or the buffer's head if start is nil)
// for the first occurrence of what, spanning segment boundaries as
// needed, and returns a Ptr at the match's start. Reports false if what
// does not occur before the end of the buffer (spec §4.3).
//
// The scan is single-pass: at each candidate position it first checks
// the leading byte before paying for a full matchWindow comparison,
// which is the common case reject for arbitrary data.
func (b *Buffer) Search(what []byte, start *Ptr) (Ptr, bool) {
	b.lock()
	defer b.unlock()

	m := len(what)
	if m == 0 {
		pos := int64(0)
		seg, off := b.head, 0
		if start != nil {
			pos = start.Pos
			if start.generation == b.generation && start.seg != nil || pos == b.totalLen {
				seg, off = start.seg, start.segOff
			} else {
				seg, off = b.locate(pos)
			}
		}
		return Ptr{Pos: pos, seg: seg, segOff: off, generation: b.generation}, true
	}

	var pos int64
	var seg *segment
	var off int
	if start == nil {
		pos, seg, off = 0, b.head, 0
	} else {
		pos = start.Pos
		if start.generation == b.generation && start.seg != nil {
			seg, off = start.seg, start.segOff
		} else {
			seg, off = b.locate(pos)
		}
	}

	first := what[0]
	limit := b.totalLen - int64(m)
	for pos <= limit {
		if seg == nil {
			break
		}
		// jump ahead to the next candidate first byte within the
		// current segment before paying for a full window compare.
		if live := seg.live(); off < len(live) {
			if idx := bytesIndexByte(live[off:], first); idx >= 0 {
				off += idx
				pos += int64(idx)
			} else {
				pos += int64(len(live) - off)
				seg, off = seg.next, 0
				continue
			}
		}
		if pos > limit {
			break
		}
		if matchWindow(seg, off, what) {
			return Ptr{Pos: pos, seg: seg, segOff: off, generation: b.generation}, true
		}
		seg, off = advanceCursor(seg, off)
		pos++
	}
	return Ptr{Pos: -1}, false
}
