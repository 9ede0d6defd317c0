package evbuffer

import (
	"bytes"
	"testing"
)

func TestPtrSetAndAdd(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("hello world"))
	var p Ptr
	if err := b.PtrSet(&p, 6); err != nil {
		t.Fatalf("PtrSet failed: %v", err)
	}
	if p.Pos != 6 {
		t.Errorf("Pos = %d, want 6", p.Pos)
	}
	if err := b.PtrAdd(&p, 3); err != nil {
		t.Fatalf("PtrAdd failed: %v", err)
	}
	if p.Pos != 9 {
		t.Errorf("Pos after PtrAdd = %d, want 9", p.Pos)
	}
}

func TestPtrSet_OutOfRange(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("abc"))
	var p Ptr
	if err := b.PtrSet(&p, 4); err != ErrBadArgument {
		t.Errorf("PtrSet(4) on a 3-byte buffer = %v, want ErrBadArgument", err)
	}
	if err := b.PtrSet(&p, 3); err != nil {
		t.Errorf("PtrSet at exactly Len() should succeed: %v", err)
	}
}

func TestPtrAdd_SurvivesAppendButNotDrain(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("hello"))
	var p Ptr
	b.PtrSet(&p, 2)

	// a pure append does not bump generation: the cached fast path stays valid.
	b.Add([]byte(" world"))
	savedGen := p.generation
	if err := b.PtrAdd(&p, 1); err != nil {
		t.Fatalf("PtrAdd after append failed: %v", err)
	}
	if p.generation != savedGen {
		t.Error("append should not force a PtrAdd cache miss")
	}
	if p.Pos != 3 {
		t.Errorf("Pos = %d, want 3", p.Pos)
	}

	// a drain bumps generation: PtrAdd must still produce a correct
	// result even though the cache is stale.
	b.Drain(1)
	if err := b.PtrAdd(&p, 0); err != nil {
		t.Fatalf("PtrAdd after drain failed: %v", err)
	}
}

func TestSearch_FindsNeedleAcrossSegments(t *testing.T) {
	b := New()
	defer b.Destroy()

	// the first Add fills the initial segment exactly, ending in "NEE";
	// "DLE" then starts a second segment, so the needle spans the boundary.
	prefix := bytes.Repeat([]byte("a"), minSegmentSize-3)
	b.Add(append(append([]byte{}, prefix...), "NEE"...))
	b.Add([]byte("DLE"))
	b.Add(bytes.Repeat([]byte("z"), 50))

	p, found := b.Search([]byte("NEEDLE"), nil)
	if !found {
		t.Fatal("Search did not find the needle")
	}
	if p.Pos != int64(len(prefix)) {
		t.Errorf("match Pos = %d, want %d", p.Pos, len(prefix))
	}
}

func TestSearch_NotFound(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("hello world"))
	p, found := b.Search([]byte("missing"), nil)
	if found {
		t.Error("Search should not find an absent needle")
	}
	if p.Pos != -1 {
		t.Errorf("NotFound sentinel Pos = %d, want -1", p.Pos)
	}
}

func TestSearch_ResumesFromStart(t *testing.T) {
	b := New()
	defer b.Destroy()

	b.Add([]byte("foo-foo-foo"))
	var start Ptr
	first, found := b.Search([]byte("foo"), &start)
	if !found || first.Pos != 0 {
		t.Fatalf("first Search = (%v, %v), want (0, true)", first.Pos, found)
	}
	b.PtrAdd(&first, 1)
	second, found := b.Search([]byte("foo"), &first)
	if !found || second.Pos != 4 {
		t.Fatalf("second Search = (%v, %v), want (4, true)", second.Pos, found)
	}
}
