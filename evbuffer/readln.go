package evbuffer

// EOLStyle selects which byte sequence(s) terminate a line for ReadLn
// (spec §4.4).
type EOLStyle int

const (
	// EOLAny treats any run of one or more '\r'/'\n' bytes as a single
	// terminator. A run that reaches the end of the currently buffered
	// data is not yet a terminator: ReadLn reports no line until a
	// non-terminator byte follows the run.
	EOLAny EOLStyle = iota
	// EOLCRLF terminates on '\n', stripping one immediately preceding
	// '\r' from the line if present; a lone '\r' not followed by '\n'
	// is ordinary data.
	EOLCRLF
	// EOLCRLFStrict requires the exact two-byte sequence "\r\n".
	EOLCRLFStrict
	// EOLLF terminates on a bare '\n'.
	EOLLF
)

// ReadLn removes and returns the next line (without its terminator) from
// the front of the buffer, according to style. It reports false, with
// the buffer left unmodified, if no complete line is currently buffered.
// A file segment encountered before a terminator is treated as "no line
// yet", since line scanning never looks inside opaque file extents.
func (b *Buffer) ReadLn(style EOLStyle) ([]byte, bool) {
	b.lock()
	if b.totalLen == 0 {
		b.unlock()
		return nil, false
	}
	lineLen, termLen, found := b.findEOLLocked(style)
	if !found {
		b.unlock()
		return nil, false
	}
	origSize := b.totalLen
	line := make([]byte, lineLen)
	b.copyFrontLocked(line)
	b.rawDrain(lineLen + termLen)
	b.unlock()
	b.notify(origSize, 0, int64(lineLen+termLen))
	return line, true
}

// copyFrontLocked copies len(dst) bytes from the head into dst without
// draining. Callers hold the lock and guarantee len(dst) <= Len() and
// that no file segment falls inside the range.
func (b *Buffer) copyFrontLocked(dst []byte) {
	copied := 0
	for s := b.head; copied < len(dst); s = s.next {
		take := s.len()
		if copied+take > len(dst) {
			take = len(dst) - copied
		}
		copy(dst[copied:copied+take], s.live()[:take])
		copied += take
	}
}

// findEOLLocked scans from the head for the first terminator matching
// style, returning the line length (excluding terminator), terminator
// length, and whether one was found. Callers hold the lock.
func (b *Buffer) findEOLLocked(style EOLStyle) (lineLen, termLen int, found bool) {
	switch style {
	case EOLLF:
		return b.scanSingleByte('\n', 1)
	case EOLCRLFStrict:
		return b.scanCRLFStrict()
	case EOLCRLF:
		return b.scanCRLF()
	default: // EOLAny
		return b.scanAny()
	}
}

func (b *Buffer) scanSingleByte(want byte, termLen int) (int, int, bool) {
	seg, off, pos := firstLive(b.head), 0, int64(0)
	for seg != nil {
		if seg.isFileSegment() {
			return 0, 0, false
		}
		if byteAt(seg, off) == want {
			return int(pos), termLen, true
		}
		seg, off = advanceCursor(seg, off)
		pos++
	}
	return 0, 0, false
}

func (b *Buffer) scanCRLFStrict() (int, int, bool) {
	seg, off, pos := firstLive(b.head), 0, int64(0)
	for seg != nil {
		if seg.isFileSegment() {
			return 0, 0, false
		}
		if byteAt(seg, off) == '\r' {
			nseg, noff := advanceCursor(seg, off)
			if nseg != nil && !nseg.isFileSegment() && byteAt(nseg, noff) == '\n' {
				return int(pos), 2, true
			}
		}
		seg, off = advanceCursor(seg, off)
		pos++
	}
	return 0, 0, false
}

func (b *Buffer) scanCRLF() (int, int, bool) {
	seg, off, pos := firstLive(b.head), 0, int64(0)
	prevCR := false
	for seg != nil {
		if seg.isFileSegment() {
			return 0, 0, false
		}
		c := byteAt(seg, off)
		if c == '\n' {
			if prevCR {
				return int(pos) - 1, 2, true
			}
			return int(pos), 1, true
		}
		prevCR = c == '\r'
		seg, off = advanceCursor(seg, off)
		pos++
	}
	return 0, 0, false
}

func (b *Buffer) scanAny() (int, int, bool) {
	seg, off, pos := firstLive(b.head), 0, int64(0)
	for seg != nil {
		if seg.isFileSegment() {
			return 0, 0, false
		}
		c := byteAt(seg, off)
		if c == '\r' || c == '\n' {
			lineEnd := pos
			endSeg, endOff, endPos := seg, off, pos
			for endSeg != nil && !endSeg.isFileSegment() {
				cc := byteAt(endSeg, endOff)
				if cc != '\r' && cc != '\n' {
					// a non-terminator byte confirms the run is closed.
					return int(lineEnd), int(endPos - lineEnd), true
				}
				endSeg, endOff = advanceCursor(endSeg, endOff)
				endPos++
			}
			// the run reached the end of buffered data with nothing
			// after it yet: it might still extend, so no line yet.
			return 0, 0, false
		}
		seg, off = advanceCursor(seg, off)
		pos++
	}
	return 0, 0, false
}
