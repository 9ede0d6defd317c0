package evbuffer

import (
	"testing"
)

func TestCallback_FiresOnMutation(t *testing.T) {
	b := New()
	defer b.Destroy()

	var got CallbackInfo
	calls := 0
	b.AddCallback(func(buf *Buffer, info CallbackInfo, arg any) {
		calls++
		got = info
	}, nil)

	b.Add([]byte("hello"))
	if calls != 1 {
		t.Fatalf("callback fired %d times, want 1", calls)
	}
	if got.OrigSize != 0 || got.NAdded != 5 || got.NDeleted != 0 {
		t.Errorf("info = %+v, want {OrigSize:0 NAdded:5 NDeleted:0}", got)
	}
}

func TestCallback_DisabledDoesNotFire(t *testing.T) {
	b := New()
	defer b.Destroy()

	calls := 0
	h := b.AddCallback(func(buf *Buffer, info CallbackInfo, arg any) {
		calls++
	}, nil)
	h.SetEnabled(false)

	b.Add([]byte("x"))
	if calls != 0 {
		t.Errorf("callback fired %d times after SetEnabled(false), want 0", calls)
	}
}

func TestCallback_RemovedStopsFiring(t *testing.T) {
	b := New()
	defer b.Destroy()

	calls := 0
	h := b.AddCallback(func(buf *Buffer, info CallbackInfo, arg any) {
		calls++
	}, nil)
	b.Add([]byte("x"))
	if err := b.RemoveCallback(h); err != nil {
		t.Fatalf("RemoveCallback failed: %v", err)
	}
	b.Add([]byte("y"))
	if calls != 1 {
		t.Errorf("callback fired %d times after removal, want 1", calls)
	}
}

func TestCallback_SuspendCoalescesUntilUnsuspend(t *testing.T) {
	b := New()
	defer b.Destroy()

	var infos []CallbackInfo
	h := b.AddCallback(func(buf *Buffer, info CallbackInfo, arg any) {
		infos = append(infos, info)
	}, nil)

	h.Suspend()
	b.Add([]byte("aa"))
	b.Add([]byte("bb"))
	if len(infos) != 0 {
		t.Fatalf("callback fired %d times while suspended, want 0", len(infos))
	}

	h.Unsuspend()
	if len(infos) != 1 {
		t.Fatalf("callback fired %d times after Unsuspend, want 1", len(infos))
	}
	if infos[0].NAdded != 4 {
		t.Errorf("coalesced NAdded = %d, want 4", infos[0].NAdded)
	}
	if infos[0].OrigSize != 0 {
		t.Errorf("coalesced OrigSize = %d, want 0 (size before the first suspended mutation)", infos[0].OrigSize)
	}
}

// fakeSink is a deferred dispatch target a real event loop would provide;
// jobs are queued instead of run inline so the test controls when they fire.
type fakeSink struct {
	jobs []func()
}

func (s *fakeSink) Schedule(job func()) {
	s.jobs = append(s.jobs, job)
}

func (s *fakeSink) runAll() {
	jobs := s.jobs
	s.jobs = nil
	for _, j := range jobs {
		j()
	}
}

func TestCallback_DeferredCoalescesMultipleMutationsIntoOneDispatch(t *testing.T) {
	b := New()
	defer b.Destroy()

	sink := &fakeSink{}
	b.DeferCallbacks(sink)

	calls := 0
	var last CallbackInfo
	b.AddCallback(func(buf *Buffer, info CallbackInfo, arg any) {
		calls++
		last = info
	}, nil)

	b.Add([]byte("aa"))
	b.Add([]byte("bb"))
	if calls != 0 {
		t.Fatalf("deferred callback should not fire inline, fired %d times", calls)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("sink should have exactly one coalesced job, got %d", len(sink.jobs))
	}

	sink.runAll()
	if calls != 1 {
		t.Fatalf("callback fired %d times after running the dispatch, want 1", calls)
	}
	if last.NAdded != 4 {
		t.Errorf("coalesced NAdded = %d, want 4", last.NAdded)
	}
}

func TestFreeze_BlocksNotifyingNothingWhenRejected(t *testing.T) {
	b := New()
	defer b.Destroy()

	calls := 0
	b.AddCallback(func(buf *Buffer, info CallbackInfo, arg any) {
		calls++
	}, nil)

	b.Freeze(Back)
	b.Add([]byte("x"))
	if calls != 0 {
		t.Errorf("a rejected mutation must not fire callbacks, fired %d times", calls)
	}
}
