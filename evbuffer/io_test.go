package evbuffer

import (
	"bytes"
	"os"
	"testing"
)

func TestBuffer_WriteToPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	defer r.Close()

	b := New()
	defer b.Destroy()
	b.Add([]byte("hello world"))

	n, err := b.Write(int(w.Fd()))
	w.Close()
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 11 {
		t.Errorf("Write returned %d, want 11", n)
	}
	if !b.IsEmpty() {
		t.Error("buffer should be drained after Write")
	}

	got := make([]byte, 11)
	if _, err := r.Read(got); err != nil {
		t.Fatalf("reading back from pipe failed: %v", err)
	}
	if !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("pipe received %q, want %q", got, "hello world")
	}
}

func TestBuffer_ReadFromPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	defer r.Close()

	data := []byte("some data to read")
	go func() {
		w.Write(data)
		w.Close()
	}()

	b := New()
	defer b.Destroy()
	n, err := b.Read(int(r.Fd()), len(data))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Read returned %d, want %d", n, len(data))
	}
	got, _ := b.Pullup(-1)
	if !bytes.Equal(got, data) {
		t.Errorf("buffer content = %q, want %q", got, data)
	}
}

func TestBuffer_WriteAtmost_FileSegmentViaSendfile(t *testing.T) {
	src, err := os.CreateTemp("", "evbuffer-src-*")
	if err != nil {
		t.Fatalf("CreateTemp(src) failed: %v", err)
	}
	defer os.Remove(src.Name())
	defer src.Close()

	data := []byte("file-backed segment contents")
	if _, err := src.Write(data); err != nil {
		t.Fatalf("writing source file failed: %v", err)
	}

	dst, err := os.CreateTemp("", "evbuffer-dst-*")
	if err != nil {
		t.Fatalf("CreateTemp(dst) failed: %v", err)
	}
	defer os.Remove(dst.Name())
	defer dst.Close()

	b := New()
	defer b.Destroy()
	if err := b.AddFile(int(src.Fd()), 0, int64(len(data))); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if b.Len() != len(data) {
		t.Fatalf("Len() = %d, want %d", b.Len(), len(data))
	}

	n, err := b.Write(int(dst.Fd()))
	if err != nil {
		t.Fatalf("Write (sendfile path) failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Write returned %d, want %d", n, len(data))
	}
	if !b.IsEmpty() {
		t.Error("buffer should be empty after the file segment is fully sent")
	}

	got := make([]byte, len(data))
	if _, err := dst.ReadAt(got, 0); err != nil {
		t.Fatalf("reading back destination file failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("destination file content = %q, want %q", got, data)
	}
}
