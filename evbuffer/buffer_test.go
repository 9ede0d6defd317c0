package evbuffer

import (
	"bytes"
	"testing"
)

func TestBuffer_AddAndLen(t *testing.T) {
	b := New()
	defer b.Destroy()

	n, err := b.Add([]byte("hello world"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if n != 11 {
		t.Errorf("Add returned %d, want 11", n)
	}
	if b.Len() != 11 {
		t.Errorf("Len() = %d, want 11", b.Len())
	}
	if b.IsEmpty() {
		t.Error("IsEmpty() = true after Add")
	}
}

func TestBuffer_AddAcrossSegments(t *testing.T) {
	b := New()
	defer b.Destroy()

	// the first Add fills the initial segment exactly, so the second one
	// has to go into a new segment.
	data := bytes.Repeat([]byte("x"), minSegmentSize*3+17)
	for _, part := range [][]byte{data[:minSegmentSize], data[minSegmentSize:]} {
		if _, err := b.Add(part); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if b.Len() != len(data) {
		t.Fatalf("Len() = %d, want %d", b.Len(), len(data))
	}
	got, err := b.Pullup(-1)
	if err != nil {
		t.Fatalf("Pullup failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Pullup(-1) did not return the data written")
	}
}

func TestBuffer_DrainPartialAndFull(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("hello world"))
	n, err := b.Drain(6)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Drain returned %d, want 6", n)
	}
	rest, _ := b.Pullup(-1)
	if !bytes.Equal(rest, []byte("world")) {
		t.Errorf("remaining = %q, want %q", rest, "world")
	}

	// draining more than Len() drains everything and succeeds.
	n, err = b.Drain(1000)
	if err != nil {
		t.Fatalf("Drain(1000) failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Drain(1000) returned %d, want 5", n)
	}
	if !b.IsEmpty() {
		t.Error("buffer should be empty after draining past Len()")
	}
}

func TestBuffer_Prepend(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("world"))
	if _, err := b.Prepend([]byte("hello ")); err != nil {
		t.Fatalf("Prepend failed: %v", err)
	}
	got, _ := b.Pullup(-1)
	if !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestBuffer_PullupBeyondLenReturnsNil(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("abc"))
	got, err := b.Pullup(10)
	if err != nil {
		t.Fatalf("Pullup unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Pullup(10) = %v, want nil", got)
	}
}

func TestBuffer_FreezeRejectsMutation(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Freeze(Back)
	if _, err := b.Add([]byte("x")); err != ErrFrozen {
		t.Errorf("Add after Freeze(Back) = %v, want ErrFrozen", err)
	}
	b.Unfreeze(Back)
	if _, err := b.Add([]byte("x")); err != nil {
		t.Errorf("Add after Unfreeze(Back) failed: %v", err)
	}

	b.Freeze(Front)
	if _, err := b.Drain(1); err != ErrFrozen {
		t.Errorf("Drain after Freeze(Front) = %v, want ErrFrozen", err)
	}
	if _, err := b.Prepend([]byte("y")); err != ErrFrozen {
		t.Errorf("Prepend after Freeze(Front) = %v, want ErrFrozen", err)
	}
}

func TestBuffer_ReserveAndCommitSpace(t *testing.T) {
	b := New()
	defer b.Destroy()

	buf, err := b.ReserveSpace(32)
	if err != nil {
		t.Fatalf("ReserveSpace failed: %v", err)
	}
	if len(buf) < 32 {
		t.Fatalf("ReserveSpace returned %d bytes, want >= 32", len(buf))
	}
	if b.ReservedLen() != 32 {
		t.Errorf("ReservedLen() = %d, want 32", b.ReservedLen())
	}
	copy(buf, "0123456789")
	if err := b.CommitSpace(10); err != nil {
		t.Fatalf("CommitSpace failed: %v", err)
	}
	if b.Len() != 10 {
		t.Errorf("Len() = %d, want 10", b.Len())
	}
	if b.ReservedLen() != 0 {
		t.Error("ReservedLen() should be 0 after CommitSpace")
	}
	got, _ := b.Pullup(-1)
	if !bytes.Equal(got, []byte("0123456789")) {
		t.Errorf("got %q, want %q", got, "0123456789")
	}
}

func TestBuffer_PullupRejectsPinnedSegmentSpan(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("head-"))
	if err := b.AddReference([]byte("pinned"), nil, nil); err != nil {
		t.Fatalf("AddReference failed: %v", err)
	}
	b.Add([]byte("-tail"))

	if _, err := b.Pullup(-1); err != ErrUnsupportedOnSegmentKind {
		t.Errorf("Pullup spanning a pinned segment = %v, want ErrUnsupportedOnSegmentKind", err)
	}

	// a pullup that stays within the first (non-pinned) segment is fine.
	got, err := b.Pullup(5)
	if err != nil {
		t.Fatalf("Pullup(5) failed: %v", err)
	}
	if !bytes.Equal(got, []byte("head-")) {
		t.Errorf("Pullup(5) = %q, want %q", got, "head-")
	}
}

func TestBuffer_DestroyClearsBuffer(t *testing.T) {
	b := New()
	b.Add([]byte("abc"))
	b.Destroy()
	// Destroy is terminal; only check it didn't panic and reset totalLen.
	if b.totalLen != 0 {
		t.Errorf("totalLen = %d after Destroy, want 0", b.totalLen)
	}
}
