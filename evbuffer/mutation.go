package evbuffer

import "fmt"

// AddBuffer unlinks every segment of src and appends them to dst's
// chain: O(k) in segment count, zero byte copies (spec §4.2). src is
// left empty. Fails with ErrFrozen if dst's back or src's front is
// frozen, in which case neither buffer is modified.
func AddBuffer(dst, src *Buffer) error {
	dst.lock()
	if dst != src {
		src.lock()
	}
	if dst.backFrozen || src.frontFrozen {
		if dst != src {
			src.unlock()
		}
		dst.unlock()
		return ErrFrozen
	}
	if src.totalLen == 0 {
		if dst != src {
			src.unlock()
		}
		dst.unlock()
		return nil
	}

	dstOrig, srcOrig := dst.totalLen, src.totalLen
	moved := src.totalLen

	// If dst's tail is an empty reusable slot, drop it in favor of
	// src's chain rather than leaving a dangling empty node behind.
	if dst.tail.len() == 0 && dst.tail == dst.head && !dst.tail.isPinned() {
		dst.head = src.head
		dst.tail = src.tail
	} else {
		dst.tail.next = src.head
		dst.tail = src.tail
	}
	dst.totalLen += moved

	src.head = newSegment(minSegmentSize)
	src.tail = src.head
	src.totalLen = 0
	dst.generation++
	if dst != src {
		src.generation++
	}

	if dst != src {
		src.unlock()
	}
	dst.unlock()

	dst.notify(dstOrig, int64(moved), 0)
	if dst != src {
		src.notify(srcOrig, 0, int64(moved))
	}
	return nil
}

// PrependBuffer is symmetric to AddBuffer on the head side: src's chain
// is linked in front of dst's, and src is left empty.
func PrependBuffer(dst, src *Buffer) error {
	dst.lock()
	if dst != src {
		src.lock()
	}
	if dst.frontFrozen || src.frontFrozen {
		if dst != src {
			src.unlock()
		}
		dst.unlock()
		return ErrFrozen
	}
	if src.totalLen == 0 {
		if dst != src {
			src.unlock()
		}
		dst.unlock()
		return nil
	}

	dstOrig, srcOrig := dst.totalLen, src.totalLen
	moved := src.totalLen

	src.tail.next = dst.head
	dst.head = src.head
	dst.totalLen += moved

	src.head = newSegment(minSegmentSize)
	src.tail = src.head
	src.totalLen = 0
	dst.generation++
	if dst != src {
		src.generation++
	}

	if dst != src {
		src.unlock()
	}
	dst.unlock()

	dst.notify(dstOrig, int64(moved), 0)
	if dst != src {
		src.notify(srcOrig, 0, int64(moved))
	}
	return nil
}

// AddReference appends a new MEMORY_PINNED segment wrapping data. data
// must remain valid until cleanup fires; cleanup runs exactly once, at
// drain or buffer destruction (spec §4.2, §5).
func (b *Buffer) AddReference(data []byte, cleanup func(arg any), arg any) error {
	b.lock()
	if b.backFrozen {
		b.unlock()
		return ErrFrozen
	}
	origSize := b.totalLen
	seg := newReferenceSegment(data, cleanup, arg)
	b.appendSegment(seg)
	b.totalLen += int64(len(data))
	b.pruneEmptyHeads()
	b.unlock()
	b.notify(origSize, int64(len(data)), 0)
	return nil
}

// AddFile appends a FILESEGMENT. Ownership of fd transfers to the
// buffer, which closes it when the segment is destroyed; such a segment
// is opaque to Pullup/Remove (spec §4.2, §5).
func (b *Buffer) AddFile(fd int, offset, length int64) error {
	if length < 0 || offset < 0 {
		return ErrBadArgument
	}
	b.lock()
	if b.backFrozen {
		b.unlock()
		return ErrFrozen
	}
	origSize := b.totalLen
	seg := newFileSegment(fd, offset, length)
	b.appendSegment(seg)
	b.totalLen += length
	b.pruneEmptyHeads()
	b.unlock()
	b.notify(origSize, length, 0)
	return nil
}

// AddPrintf formats with fmt.Sprintf and appends the result as Add
// does, returning the number of bytes appended.
func (b *Buffer) AddPrintf(format string, args ...any) (int, error) {
	s := fmt.Sprintf(format, args...)
	return b.Add([]byte(s))
}

// AddVPrintf is AddPrintf taking a pre-built argument slice, matching
// the C API's add_vprintf/add_printf split.
func (b *Buffer) AddVPrintf(format string, args []any) (int, error) {
	return b.AddPrintf(format, args...)
}

// ReserveSpace ensures >= n contiguous bytes are available at the tail
// and returns a writable slice over them. The reserved bytes are not
// counted in Len() and are invisible to readers until CommitSpace.
// Repeated calls without an intervening commit return the same region;
// calling ReserveSpace again without committing implicitly invalidates
// any prior uncommitted reservation (spec §4.2).
func (b *Buffer) ReserveSpace(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrBadArgument
	}
	b.lock()
	defer b.unlock()
	if b.backFrozen {
		return nil, ErrFrozen
	}
	if b.reserving && b.reservedLen >= n {
		return b.tail.writableTail()[:n], nil
	}
	b.expand(n)
	b.reserving = true
	b.reservedLen = n
	return b.tail.writableTail()[:n], nil
}

// CommitSpace marks the first k reserved bytes live. k must be <= the
// last reservation. Increments Len() by exactly k and clears the
// reservation.
func (b *Buffer) CommitSpace(k int) error {
	b.lock()
	if !b.reserving || k < 0 || k > b.reservedLen {
		b.unlock()
		return ErrBadArgument
	}
	origSize := b.totalLen
	b.tail.off += k
	b.totalLen += int64(k)
	b.reserving = false
	b.reservedLen = 0
	b.unlock()
	b.notify(origSize, int64(k), 0)
	return nil
}

// PeekAll appends every live, non-file segment's readable bytes, in
// order, to dst and returns the extended slice. It stops at the first
// FILESEGMENT it encounters, leaving the rest of the chain for a
// subsequent call once that segment has been consumed by Write. This is
// the vectored-I/O handoff a poller uses to build an iovec list without
// Buffer knowing about the caller's transport.
func (b *Buffer) PeekAll(dst [][]byte) [][]byte {
	b.lock()
	defer b.unlock()
	for s := b.head; s != nil; s = s.next {
		if s.isFileSegment() {
			break
		}
		if s.len() == 0 {
			continue
		}
		dst = append(dst, s.live())
	}
	return dst
}

// ReservedLen reports the size of the outstanding ReserveSpace
// reservation, or 0 if none is pending.
func (b *Buffer) ReservedLen() int {
	b.lock()
	defer b.unlock()
	if !b.reserving {
		return 0
	}
	return b.reservedLen
}

// Remove copies up to n bytes from the head into dst and drains them,
// returning the number of bytes copied. Fails with
// ErrUnsupportedOnSegmentKind if the copied range includes a
// FILESEGMENT.
func (b *Buffer) Remove(dst []byte, n int) (int, error) {
	if n < 0 {
		return 0, ErrBadArgument
	}
	b.lock()
	if b.frontFrozen {
		b.unlock()
		return 0, ErrFrozen
	}
	if n > len(dst) {
		n = len(dst)
	}
	if int64(n) > b.totalLen {
		n = int(b.totalLen)
	}
	// check for a file segment inside the copied range
	need := n
	for s := b.head; need > 0; s = s.next {
		if s.isFileSegment() {
			b.unlock()
			return 0, ErrUnsupportedOnSegmentKind
		}
		need -= s.len()
	}
	origSize := b.totalLen
	copied := 0
	for copied < n {
		s := b.head
		take := s.len()
		if copied+take > n {
			take = n - copied
		}
		copy(dst[copied:copied+take], s.live()[:take])
		copied += take
		s.misalign += take
		s.off -= take
		if s.off == 0 && s != b.tail {
			b.head = s.next
			s.release()
		}
	}
	b.totalLen -= int64(n)
	b.pruneEmptyHeads()
	b.generation++
	b.unlock()
	b.notify(origSize, 0, int64(n))
	return n, nil
}

// advanceSrcHead moves src's head pointer past a segment that has just
// been relinked away in full. If that segment was also the tail, src is
// left with a fresh empty segment to append into.
func advanceSrcHead(src *Buffer, s *segment) {
	if s == src.tail {
		fresh := newSegment(minSegmentSize)
		src.head, src.tail = fresh, fresh
		return
	}
	src.head = s.next
}

// RemoveBuffer transfers up to n bytes from src to dst, moving whole
// segments by relinking when possible and copying only the partial
// boundary segment, returning the number of bytes transferred.
func RemoveBuffer(src, dst *Buffer, n int) (int, error) {
	if n < 0 {
		return 0, ErrBadArgument
	}
	src.lock()
	if dst != src {
		dst.lock()
	}
	if src.frontFrozen || dst.backFrozen {
		if dst != src {
			dst.unlock()
		}
		src.unlock()
		return 0, ErrFrozen
	}
	if int64(n) > src.totalLen {
		n = int(src.totalLen)
	}
	srcOrig, dstOrig := src.totalLen, dst.totalLen
	moved := 0
	for moved < n {
		s := src.head
		remain := n - moved
		segLen := s.len()

		if s.isFileSegment() {
			// file segments are opaque to the partial-copy path; only
			// take them whole, and only if they fit entirely.
			if segLen > remain {
				break
			}
			moved += segLen
			advanceSrcHead(src, s)
			s.next = nil
			dst.appendSegment(s)
			dst.totalLen += int64(segLen)
			continue
		}

		if segLen <= remain {
			// whole-segment relink: zero bytes copied.
			moved += segLen
			advanceSrcHead(src, s)
			s.next = nil
			dst.appendSegment(s)
			dst.totalLen += int64(segLen)
			continue
		}

		// partial boundary segment: copy only the remainder.
		take := remain
		buf := make([]byte, take)
		copy(buf, s.live()[:take])
		dst.rawAppend(buf)
		s.misalign += take
		s.off -= take
		moved += take
		break
	}
	src.totalLen -= int64(moved)
	src.pruneEmptyHeads()
	src.generation++
	if dst != src {
		dst.generation++
	}

	if dst != src {
		dst.unlock()
	}
	src.unlock()

	src.notify(srcOrig, 0, int64(moved))
	if dst != src {
		dst.notify(dstOrig, int64(moved), 0)
	}
	return moved, nil
}
