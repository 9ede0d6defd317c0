package evbuffer

import (
	"bytes"
	"testing"
)

func TestReadLn_LF(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("line one\nline two\n"))
	line, ok := b.ReadLn(EOLLF)
	if !ok || !bytes.Equal(line, []byte("line one")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "line one")
	}
	line, ok = b.ReadLn(EOLLF)
	if !ok || !bytes.Equal(line, []byte("line two")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "line two")
	}
	if _, ok = b.ReadLn(EOLLF); ok {
		t.Error("ReadLn should report false once the buffer is empty")
	}
}

func TestReadLn_CRLFStrict(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("a\r\nb\nc\r\n"))
	line, ok := b.ReadLn(EOLCRLFStrict)
	if !ok || !bytes.Equal(line, []byte("a")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "a")
	}
	// a bare '\n' is not a CRLFStrict terminator, so the next line
	// extends until the following "\r\n".
	line, ok = b.ReadLn(EOLCRLFStrict)
	if !ok || !bytes.Equal(line, []byte("b\nc")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "b\nc")
	}
}

func TestReadLn_CRLF_LoneCRIsOrdinaryData(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("a\rb\n"))
	line, ok := b.ReadLn(EOLCRLF)
	if !ok || !bytes.Equal(line, []byte("a\rb")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "a\rb")
	}
}

func TestReadLn_CRLF_StripsPrecedingCR(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("hello\r\n"))
	line, ok := b.ReadLn(EOLCRLF)
	if !ok || !bytes.Equal(line, []byte("hello")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "hello")
	}
}

func TestReadLn_Any_CoalescesTerminatorRun(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("first\r\n\n\rsecond"))
	line, ok := b.ReadLn(EOLAny)
	if !ok || !bytes.Equal(line, []byte("first")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "first")
	}
	// the whole "\r\n\n\r" run went with the first line; "second" has no
	// terminator after it, so it is not a complete line yet.
	if line, ok = b.ReadLn(EOLAny); ok {
		t.Fatalf("ReadLn = (%q, %v), want (nil, false) for unterminated %q", line, ok, "second")
	}
	if rest, _ := b.Pullup(-1); !bytes.Equal(rest, []byte("second")) {
		t.Fatalf("remaining = %q, want %q", rest, "second")
	}
}

func TestReadLn_Any_TrailingRunWithoutConfirmationIsNotALine(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("partial\r\n"))
	if _, ok := b.ReadLn(EOLAny); ok {
		t.Error("a terminator run reaching end-of-buffer should not be a complete line yet")
	}
	// once more data confirms the run is closed, the line becomes available.
	b.Add([]byte("more"))
	line, ok := b.ReadLn(EOLAny)
	if !ok || !bytes.Equal(line, []byte("partial")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "partial")
	}
}

func TestReadLn_EmptyBufferReturnsFalse(t *testing.T) {
	b := New()
	defer b.Destroy()

	for _, style := range []EOLStyle{EOLAny, EOLCRLF, EOLCRLFStrict, EOLLF} {
		if _, ok := b.ReadLn(style); ok {
			t.Errorf("ReadLn(%v) on an empty buffer = true, want false", style)
		}
	}
}

func TestReadLn_AfterAddReferenceLeavesNoStaleEmptyHead(t *testing.T) {
	b := New()
	defer b.Destroy()

	data := []byte("referenced\n")
	if err := b.AddReference(data, nil, nil); err != nil {
		t.Fatalf("AddReference failed: %v", err)
	}
	line, ok := b.ReadLn(EOLLF)
	if !ok || !bytes.Equal(line, []byte("referenced")) {
		t.Fatalf("ReadLn = (%q, %v), want (%q, true)", line, ok, "referenced")
	}
}

func TestReadLn_NoTerminatorReturnsFalse(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("no terminator here"))
	if _, ok := b.ReadLn(EOLLF); ok {
		t.Error("ReadLn should report false when no terminator is buffered")
	}
	if b.Len() != len("no terminator here") {
		t.Error("ReadLn must not modify the buffer when no line is found")
	}
}
