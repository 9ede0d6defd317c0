package evbuffer

import (
	"bytes"
	"os"
	"testing"
)

func TestAddBuffer_MovesAndEmptiesSource(t *testing.T) {
	dst, src := New(), New()
	defer dst.Destroy()
	defer src.Destroy()

	dst.Add([]byte("hello "))
	src.Add([]byte("world"))

	if err := AddBuffer(dst, src); err != nil {
		t.Fatalf("AddBuffer failed: %v", err)
	}
	if !src.IsEmpty() {
		t.Error("src should be empty after AddBuffer")
	}
	got, _ := dst.Pullup(-1)
	if !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("dst = %q, want %q", got, "hello world")
	}
}

func TestPrependBuffer_LinksInFront(t *testing.T) {
	dst, src := New(), New()
	defer dst.Destroy()
	defer src.Destroy()

	dst.Add([]byte("world"))
	src.Add([]byte("hello "))

	if err := PrependBuffer(dst, src); err != nil {
		t.Fatalf("PrependBuffer failed: %v", err)
	}
	got, _ := dst.Pullup(-1)
	if !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("dst = %q, want %q", got, "hello world")
	}
	if !src.IsEmpty() {
		t.Error("src should be empty after PrependBuffer")
	}
}

func TestRemoveBuffer_PartialAndWholeSegments(t *testing.T) {
	dst, src := New(), New()
	defer dst.Destroy()
	defer src.Destroy()

	data := bytes.Repeat([]byte("y"), minSegmentSize*2+5)
	src.Add(data)
	srcLen := src.Len()

	moved, err := RemoveBuffer(src, dst, 100)
	if err != nil {
		t.Fatalf("RemoveBuffer failed: %v", err)
	}
	if moved != 100 {
		t.Fatalf("RemoveBuffer returned %d, want 100", moved)
	}
	if dst.Len() != 100 {
		t.Errorf("dst.Len() = %d, want 100", dst.Len())
	}
	if src.Len() != srcLen-100 {
		t.Errorf("src.Len() = %d, want %d", src.Len(), srcLen-100)
	}

	// moving the rest should drain src completely and not double-count
	// dst's length.
	remaining := src.Len()
	moved, err = RemoveBuffer(src, dst, remaining)
	if err != nil {
		t.Fatalf("RemoveBuffer (remainder) failed: %v", err)
	}
	if moved != remaining {
		t.Fatalf("RemoveBuffer returned %d, want %d", moved, remaining)
	}
	if !src.IsEmpty() {
		t.Error("src should be empty after moving everything")
	}
	if dst.Len() != len(data) {
		t.Errorf("dst.Len() = %d, want %d (totalLen must not be double-counted)", dst.Len(), len(data))
	}
	got, _ := dst.Pullup(-1)
	if !bytes.Equal(got, data) {
		t.Error("dst content mismatch after RemoveBuffer")
	}
}

func TestRemoveBuffer_MoreThanAvailableClampsToLen(t *testing.T) {
	dst, src := New(), New()
	defer dst.Destroy()
	defer src.Destroy()

	src.Add([]byte("abc"))
	moved, err := RemoveBuffer(src, dst, 1000)
	if err != nil {
		t.Fatalf("RemoveBuffer failed: %v", err)
	}
	if moved != 3 {
		t.Errorf("RemoveBuffer returned %d, want 3", moved)
	}
	if dst.Len() != 3 {
		t.Errorf("dst.Len() = %d, want 3", dst.Len())
	}
}

func TestRemove_CopiesAndDrains(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("hello world"))
	dst := make([]byte, 5)
	n, err := b.Remove(dst, 5)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if n != 5 || !bytes.Equal(dst, []byte("hello")) {
		t.Errorf("Remove copied %q (n=%d), want %q", dst, n, "hello")
	}
	if b.Len() != 6 {
		t.Errorf("Len() = %d, want 6", b.Len())
	}
}

func TestReserveSpace_RepeatedCallReturnsSameRegion(t *testing.T) {
	b := New()
	defer b.Destroy()

	buf1, _ := b.ReserveSpace(16)
	buf2, _ := b.ReserveSpace(16)
	if &buf1[0] != &buf2[0] {
		t.Error("repeated ReserveSpace with the same size should return the same region")
	}
}

func TestAddFile_OpaqueToPullupAndRemove(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("head-"))
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	defer w.Close()
	data := []byte("filedata")
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write to pipe failed: %v", err)
	}
	if err := b.AddFile(int(r.Fd()), 0, int64(len(data))); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}

	if _, err := b.Pullup(-1); err != ErrUnsupportedOnSegmentKind {
		t.Errorf("Pullup across a file segment = %v, want ErrUnsupportedOnSegmentKind", err)
	}
	dst := make([]byte, b.Len())
	if _, err := b.Remove(dst, len(dst)); err != ErrUnsupportedOnSegmentKind {
		t.Errorf("Remove across a file segment = %v, want ErrUnsupportedOnSegmentKind", err)
	}

	// pullup of just the non-file prefix still works.
	head, err := b.Pullup(5)
	if err != nil {
		t.Fatalf("Pullup(5) failed: %v", err)
	}
	if !bytes.Equal(head, []byte("head-")) {
		t.Errorf("Pullup(5) = %q, want %q", head, "head-")
	}
}
