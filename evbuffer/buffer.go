package evbuffer

import "sync"

// Buffer is a dynamically-sized, segmented byte queue. See the package
// doc comment and spec §3 for the data model this implements.
type Buffer struct {
	mu      sync.Mutex
	locking bool

	head *segment // release head: oldest segment still in the chain
	tail *segment // append point: last segment in the chain

	totalLen int64 // sum of segment.off across the chain

	frontFrozen bool
	backFrozen  bool

	reservedLen int  // bytes reserved-but-uncommitted in the tail segment
	reserving   bool // a ReserveSpace is outstanding

	// callback machinery (see callback.go)
	cbHead       *callbackEntry
	cbTail       *callbackEntry
	deferredSink DeferredSink

	deferScheduled bool
	deferOrigSize  int64
	deferAdded     int64
	deferDeleted   int64

	notifyDepth int // recursion guard for the notification machinery

	// generation counts structural changes that can invalidate a cached
	// Ptr: drains, prepends, pullup merges, and cross-buffer segment
	// moves. Pure appends do not bump it, so a Ptr survives writes that
	// only extend the tail (spec §4.3).
	generation int64
}

// New allocates an empty Buffer.
func New() *Buffer {
	b := &Buffer{}
	seg := newSegment(minSegmentSize)
	b.head = seg
	b.tail = seg
	return b
}

// Len returns the number of live, readable bytes in the buffer.
func (b *Buffer) Len() int {
	b.lock()
	defer b.unlock()
	return int(b.totalLen)
}

// IsEmpty reports whether the buffer has no readable bytes.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// appendSegment links seg as the new tail.
func (b *Buffer) appendSegment(seg *segment) {
	b.tail.next = seg
	b.tail = seg
}

// expand ensures the tail segment has at least n bytes of free capacity,
// per spec §4.1's allocation policy: reuse the tail's slack if present,
// grow an empty non-pinned tail in place, otherwise append a fresh
// segment.
func (b *Buffer) expand(n int) {
	t := b.tail
	if t.avail() >= n {
		return
	}
	if t.len() == 0 && !t.isPinned() && !t.isFileSegment() && !t.isImmutable() {
		t.reallocate(n)
		return
	}
	b.appendSegment(newSegment(n))
}

// pruneEmptyHeads drops fully-drained segments (pinned ones included,
// which runs their cleanup) from the head of the chain, keeping a lone
// empty tail around for reuse (spec §4.1 drain policy).
func (b *Buffer) pruneEmptyHeads() {
	for b.head != b.tail && b.head.len() == 0 {
		old := b.head
		b.head = b.head.next
		old.release()
	}
}

// totalSegments returns the chain length; used by tests and diagnostics.
func (b *Buffer) totalSegments() int {
	n := 0
	for s := b.head; s != nil; s = s.next {
		n++
	}
	return n
}

// Add copies n bytes from data into the tail, growing the chain as
// needed. Fails with ErrFrozen if the back is frozen.
func (b *Buffer) Add(data []byte) (int, error) {
	b.lock()
	if b.backFrozen {
		b.unlock()
		return 0, ErrFrozen
	}
	n := len(data)
	origSize := b.totalLen
	b.rawAppend(data)
	b.unlock()
	b.notify(origSize, int64(n), 0)
	return n, nil
}

// rawAppend copies data into the tail without taking the lock or
// notifying callbacks; callers hold the lock and notify themselves. It
// is also used by RemoveBuffer to copy a partial boundary segment.
func (b *Buffer) rawAppend(data []byte) {
	n := len(data)
	if n == 0 {
		return
	}
	b.expand(n)
	copy(b.tail.writableTail(), data)
	b.tail.off += n
	b.totalLen += int64(n)
}

// Drain discards up to n bytes from the head. Draining more than Len()
// drains everything and succeeds (spec §4.2). Fails with ErrFrozen if
// the front is frozen, in which case no bytes are removed.
func (b *Buffer) Drain(n int) (int, error) {
	if n < 0 {
		return 0, ErrBadArgument
	}
	b.lock()
	if b.frontFrozen {
		b.unlock()
		return 0, ErrFrozen
	}
	origSize := b.totalLen
	drained := b.rawDrain(n)
	b.unlock()
	b.notify(origSize, 0, int64(drained))
	return drained, nil
}

// rawDrain removes up to n bytes from the head, walking fully-consumed
// segments off the chain and releasing them, per spec §4.1's drain
// policy. Callers hold the lock.
func (b *Buffer) rawDrain(n int) int {
	if n > int(b.totalLen) {
		n = int(b.totalLen)
	}
	remaining := n
	for remaining > 0 {
		h := b.head
		if h.len() <= remaining {
			remaining -= h.len()
			h.misalign += h.len()
			h.off = 0
			if h != b.tail {
				b.head = h.next
				h.release()
			} else {
				// sole segment: keep it for reuse, reset to empty.
				if !h.isPinned() {
					h.misalign = 0
				}
			}
		} else {
			h.misalign += remaining
			h.off -= remaining
			remaining = 0
		}
	}
	b.totalLen -= int64(n)
	b.pruneEmptyHeads()
	b.generation++
	return n
}

// Pullup guarantees the first n bytes are contiguous in memory and
// returns a slice over them (not a copy, except when segments must be
// merged). n == -1 means "the entire buffer". Returns nil if n exceeds
// Len(), and ErrUnsupportedOnSegmentKind if a FILESEGMENT or a
// MEMORY_PINNED segment falls inside the pulled range: a pinned segment
// may be returned as-is when it alone already satisfies n, but it is
// never copied out of or released to build a merged segment (spec §5).
func (b *Buffer) Pullup(n int) ([]byte, error) {
	b.lock()
	defer b.unlock()
	if n == -1 {
		n = int(b.totalLen)
	}
	if n <= 0 {
		return nil, nil
	}
	if int64(n) > b.totalLen {
		return nil, nil
	}
	if b.head.len() >= n {
		return b.head.live()[:n], nil
	}
	// Walk forward to see how many segments the pulled range spans and
	// whether any of them is a file segment or pinned segment: both are
	// opaque to the merge below, which copies out of and releases every
	// segment it spans.
	need := n
	for s := b.head; need > 0; s = s.next {
		if s == nil {
			return nil, ErrBadArgument
		}
		if s.isFileSegment() || s.isPinned() {
			return nil, ErrUnsupportedOnSegmentKind
		}
		need -= s.len()
	}

	merged := newSegment(n)
	dst := merged.writableTail()
	copied := 0
	s := b.head
	for copied < n {
		l := s.len()
		take := l
		if copied+take > n {
			take = n - copied
		}
		copy(dst[copied:copied+take], s.live()[:take])
		copied += take
		s.misalign += take
		s.off -= take
		next := s.next
		if s.off == 0 && s != b.tail {
			next2 := s.next
			s.release()
			s = next2
		} else {
			s = next
		}
	}
	merged.off = n
	merged.next = s
	b.head = merged
	if s == nil {
		b.tail = merged
	}
	b.generation++
	return merged.live(), nil
}

// Prepend inserts n bytes before the current head, using the head
// segment's leading slack (misalign) when it fits, otherwise allocating
// a new head segment. Fails with ErrFrozen if the front is frozen.
func (b *Buffer) Prepend(data []byte) (int, error) {
	n := len(data)
	b.lock()
	if b.frontFrozen {
		b.unlock()
		return 0, ErrFrozen
	}
	origSize := b.totalLen
	h := b.head
	if !h.isPinned() && !h.isFileSegment() && !h.isImmutable() && h.misalign >= n {
		h.misalign -= n
		h.off += n
		copy(h.buf[h.misalign:h.misalign+n], data)
	} else {
		seg := newSegment(n)
		// Place the data at the end of the new segment's capacity so
		// that any subsequent Prepend can still use leading slack.
		seg.misalign = seg.bufLen - n
		seg.off = n
		copy(seg.buf[seg.misalign:], data)
		seg.next = b.head
		b.head = seg
	}
	b.totalLen += int64(n)
	b.generation++
	b.unlock()
	b.notify(origSize, int64(n), 0)
	return n, nil
}

// Destroy releases every segment in the chain, invoking each segment's
// cleanup (pinned memory) or closing its fd (file segments) exactly
// once. The buffer must not be used afterward.
func (b *Buffer) Destroy() {
	b.lock()
	defer b.unlock()
	for s := b.head; s != nil; {
		next := s.next
		s.release()
		s = next
	}
	b.head, b.tail = nil, nil
	b.totalLen = 0
}
