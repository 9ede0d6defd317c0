package evbuffer

import (
	"io"

	"golang.org/x/sys/unix"
)

// Read reads up to howMuch bytes from fd directly into the buffer's
// tail, growing the chain as needed, using readv(2) to land the data in
// at most two segments without an intermediate copy (spec §6). Returns
// the number of bytes read (0 at EOF) or a wrapped I/O error.
func (b *Buffer) Read(fd int, howMuch int) (int, error) {
	if howMuch <= 0 {
		return 0, ErrBadArgument
	}
	b.lock()
	if b.backFrozen {
		b.unlock()
		return 0, ErrFrozen
	}
	origSize := b.totalLen

	tail := b.tail
	if tail.avail() == 0 {
		b.expand(minSegmentSize)
		tail = b.tail
	}

	var iovs [][]byte
	var targets []*segment
	want := howMuch

	if n1 := tail.avail(); n1 > 0 {
		if n1 > want {
			n1 = want
		}
		buf := tail.writableTail()[:n1]
		iovs = append(iovs, buf)
		targets = append(targets, tail)
		want -= n1
	}
	var spare *segment
	if want > 0 {
		spare = newSegment(want)
		iovs = append(iovs, spare.buf[:want])
		targets = append(targets, spare)
	}

	n, err := unix.Readv(fd, iovs)
	if n > 0 {
		remaining := n
		for _, s := range targets {
			cap := len(s.writableTail())
			if s == spare {
				cap = spare.bufLen
			}
			take := remaining
			if take > cap {
				take = cap
			}
			if s == spare {
				spare.off = take
			} else {
				s.off += take
			}
			remaining -= take
			if remaining == 0 {
				break
			}
		}
		if spare != nil && spare.off > 0 {
			b.appendSegment(spare)
		}
		b.totalLen += int64(n)
	}
	b.unlock()
	if n > 0 {
		b.notify(origSize, int64(n), 0)
	}
	if err != nil {
		return n, ioError(err)
	}
	return n, nil
}

// gatherWriteIovecs collects up to max bytes of live, non-file segments
// starting at the head into iovecs for writev, stopping at the first
// file segment (which must be emitted separately via sendfile/splice).
// Callers hold the lock.
func gatherWriteIovecs(b *Buffer, max int) (iovs [][]byte, total int, stoppedAtFile bool) {
	remaining := max
	for s := b.head; s != nil && remaining > 0; s = s.next {
		if s.isFileSegment() {
			stoppedAtFile = true
			break
		}
		l := s.len()
		if l == 0 {
			continue
		}
		take := l
		if take > remaining {
			take = remaining
		}
		live := s.live()[:take]
		iovs = append(iovs, live)
		total += take
		remaining -= take
		if take < l {
			break
		}
	}
	return iovs, total, stoppedAtFile
}

// WriteAtmost writes up to howMuch bytes from the front of the buffer to
// fd, draining exactly what was written. Ordinary segments are written
// with writev(2); a file segment reached at the front is emitted via
// platformSendFile: sendfile(2) on Linux, a pread+write copy on other
// platforms (spec §6).
func (b *Buffer) WriteAtmost(fd int, howMuch int) (int, error) {
	if howMuch < 0 {
		return 0, ErrBadArgument
	}
	b.lock()
	if b.frontFrozen {
		b.unlock()
		return 0, ErrFrozen
	}
	if int64(howMuch) > b.totalLen {
		howMuch = int(b.totalLen)
	}
	origSize := b.totalLen
	written := 0
	b.pruneEmptyHeads()

	for written < howMuch {
		if b.head.isFileSegment() {
			seg := b.head
			remain := howMuch - written
			n, err := platformSendFile(fd, seg, remain)
			if n > 0 {
				seg.fileOff += int64(n)
				seg.off -= n
				b.totalLen -= int64(n)
				b.generation++
				written += n
				if seg.off == 0 {
					if seg == b.tail {
						fresh := newSegment(minSegmentSize)
						b.head, b.tail = fresh, fresh
					} else {
						b.head = seg.next
					}
					seg.release()
				}
			}
			if err != nil {
				b.pruneEmptyHeads()
				b.unlock()
				if written > 0 {
					b.notify(origSize, 0, int64(written))
				}
				return written, ioError(err)
			}
			if n == 0 {
				break
			}
			continue
		}

		iovs, total, stoppedAtFile := gatherWriteIovecs(b, howMuch-written)
		if total == 0 {
			break
		}
		n, err := unix.Writev(fd, iovs)
		if n > 0 {
			b.rawDrain(n)
			written += n
		}
		if err != nil {
			b.unlock()
			if written > 0 {
				b.notify(origSize, 0, int64(written))
			}
			return written, ioError(err)
		}
		if n < total {
			// short write: don't loop past the file-segment boundary
			// until the caller re-invokes with the updated head.
			break
		}
		_ = stoppedAtFile
	}

	b.unlock()
	if written > 0 {
		b.notify(origSize, 0, int64(written))
	}
	return written, nil
}

// Write drains the entire buffer to fd, looping over WriteAtmost until
// empty or an error occurs.
func (b *Buffer) Write(fd int) (int, error) {
	total := 0
	for {
		n := b.Len()
		if n == 0 {
			return total, nil
		}
		written, err := b.WriteAtmost(fd, n)
		total += written
		if err != nil {
			return total, err
		}
		if written == 0 {
			return total, io.ErrNoProgress
		}
	}
}
