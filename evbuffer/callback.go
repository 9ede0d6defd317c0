package evbuffer

// CallbackInfo describes a change notification: the buffer's length
// before the (possibly coalesced) window of mutations, and the bytes
// added/deleted across that window (spec §4.5).
type CallbackInfo struct {
	OrigSize int64
	NAdded   int64
	NDeleted int64
}

// CallbackFunc is invoked on a successful mutation. It must not remove
// another callback entry; it may remove itself and may mutate buf.
type CallbackFunc func(buf *Buffer, info CallbackInfo, arg any)

// DeferredSink schedules a single coalesced callback dispatch on a host
// event loop (spec §6's "Event-loop contract"). Schedule may be called
// many times for the same logical pending job; implementations should
// coalesce repeated signals into one dispatch, which is why evbuffer
// only ever calls Schedule once per entry while a dispatch is pending
// (see callbackEntry.scheduled).
type DeferredSink interface {
	Schedule(job func())
}

// callbackEntry is one registered callback (spec §3).
type callbackEntry struct {
	fn      CallbackFunc
	arg     any
	enabled bool
	removed bool

	suspended     bool
	sizeOnSuspend int64

	havePending            bool
	origSizeAtFirstPending int64
	nAdded                 int64
	nDeleted               int64

	scheduled bool // a deferred dispatch for this entry is in flight

	next *callbackEntry
}

// CallbackHandle references a registered callback entry. It is
// invalidated by RemoveCallback.
type CallbackHandle struct {
	buf   *Buffer
	entry *callbackEntry
}

// AddCallback registers fn to run after every successful mutation.
// Callback order across distinct entries is unspecified (spec §4.5);
// this implementation dispatches in registration order, but callers must
// not depend on that.
func (b *Buffer) AddCallback(fn CallbackFunc, arg any) *CallbackHandle {
	b.lock()
	defer b.unlock()
	e := &callbackEntry{fn: fn, arg: arg, enabled: true}
	if b.cbTail == nil {
		b.cbHead, b.cbTail = e, e
	} else {
		b.cbTail.next = e
		b.cbTail = e
	}
	return &CallbackHandle{buf: b, entry: e}
}

// RemoveCallback unregisters a callback. The handle must not be used
// afterward. A callback function may call RemoveCallback on its own
// handle (to remove itself) but must not remove another entry's handle.
func (b *Buffer) RemoveCallback(h *CallbackHandle) error {
	if h == nil || h.buf != b {
		return ErrBadArgument
	}
	b.lock()
	defer b.unlock()
	h.entry.removed = true
	h.entry.enabled = false
	return nil
}

// SetEnabled toggles whether the entry fires at all.
func (h *CallbackHandle) SetEnabled(enabled bool) {
	b := h.buf
	b.lock()
	defer b.unlock()
	h.entry.enabled = enabled
}

// Suspend stops the entry from firing; deltas keep accumulating. Call
// Unsuspend to flush the aggregate in one shot.
func (h *CallbackHandle) Suspend() {
	b := h.buf
	b.lock()
	defer b.unlock()
	h.entry.suspended = true
	h.entry.sizeOnSuspend = b.totalLen
}

// Unsuspend resumes the entry. If any mutation occurred while suspended,
// the callback fires once (or is scheduled once, in deferred mode) with
// the aggregated delta.
func (h *CallbackHandle) Unsuspend() {
	b := h.buf
	b.lock()
	e := h.entry
	e.suspended = false
	if !e.havePending {
		b.unlock()
		return
	}
	if b.deferredSink != nil {
		b.scheduleDeferredLocked(e)
		b.unlock()
		return
	}
	added, deleted, orig := e.nAdded, e.nDeleted, e.origSizeAtFirstPending
	e.nAdded, e.nDeleted, e.havePending = 0, 0, false
	fn, arg := e.fn, e.arg
	b.unlock()
	if fn != nil {
		fn(b, CallbackInfo{OrigSize: orig, NAdded: added, NDeleted: deleted}, arg)
	}
}

// DeferCallbacks binds sink as the event-loop dispatch target. Once
// bound, every callback dispatch for this buffer is coalesced and run
// once per pending window on sink's schedule instead of inline. Passing
// nil reverts to immediate, inline dispatch.
func (b *Buffer) DeferCallbacks(sink DeferredSink) {
	b.lock()
	defer b.unlock()
	b.deferredSink = sink
}

// accumulate folds a mutation's delta into an entry's pending aggregate,
// recording the pre-mutation size only for the first delta of a window
// (spec §8 property 8: "orig_size equal to the length at the start of
// the coalesced window").
func (b *Buffer) accumulate(e *callbackEntry, origSize, added, deleted int64) {
	if !e.havePending {
		e.origSizeAtFirstPending = origSize
		e.havePending = true
	}
	e.nAdded += added
	e.nDeleted += deleted
}

// scheduleDeferredLocked arranges exactly one pending Schedule call per
// entry; repeated mutations before the job runs just grow the
// accumulator (b.mu must be held).
func (b *Buffer) scheduleDeferredLocked(e *callbackEntry) {
	if e.scheduled {
		return
	}
	e.scheduled = true
	sink := b.deferredSink
	sink.Schedule(func() {
		b.lock()
		e.scheduled = false
		if !e.havePending {
			b.unlock()
			return
		}
		added, deleted, orig := e.nAdded, e.nDeleted, e.origSizeAtFirstPending
		e.nAdded, e.nDeleted, e.havePending = 0, 0, false
		fn, arg := e.fn, e.arg
		b.unlock()
		if fn != nil {
			fn(b, CallbackInfo{OrigSize: orig, NAdded: added, NDeleted: deleted}, arg)
		}
	})
}

// notify is called by every mutation after its own lock section
// completes (origSize is the length observed before the mutation).
//
// The lock is released before any user callback runs: recursive
// mutations from a callback re-enter through the normal public API and
// acquire the lock themselves. This is the refinement spec §9 explicitly
// permits in place of invoking callbacks with the lock held, and it
// sidesteps Go's sync.Mutex not being re-entrant. notifyDepth is kept
// only as a diagnostic/reentrancy sanity counter, not a correctness
// mechanism — each call to notify is self-contained over the entry list
// as it stood when the mutation completed.
func (b *Buffer) notify(origSize, added, deleted int64) {
	if added == 0 && deleted == 0 {
		return
	}
	b.lock()
	b.notifyDepth++
	type job struct {
		fn   CallbackFunc
		arg  any
		info CallbackInfo
	}
	var jobs []job
	for e := b.cbHead; e != nil; e = e.next {
		if e.removed || !e.enabled {
			continue
		}
		b.accumulate(e, origSize, added, deleted)
		if e.suspended {
			continue
		}
		if b.deferredSink != nil {
			b.scheduleDeferredLocked(e)
			continue
		}
		a, d, o := e.nAdded, e.nDeleted, e.origSizeAtFirstPending
		e.nAdded, e.nDeleted, e.havePending = 0, 0, false
		jobs = append(jobs, job{e.fn, e.arg, CallbackInfo{OrigSize: o, NAdded: a, NDeleted: d}})
	}
	b.notifyDepth--
	b.unlock()
	for _, j := range jobs {
		if j.fn != nil {
			j.fn(b, j.info, j.arg)
		}
	}
}

// Side selects which end of the buffer a freeze gate applies to.
type Side int

const (
	Front Side = iota
	Back
)

// Freeze rejects mutations at the given side: Front rejects
// drains/prepends, Back rejects appends (including AddBuffer into the
// back and ReserveSpace). Rejected mutations fail without side effects.
func (b *Buffer) Freeze(side Side) {
	b.lock()
	defer b.unlock()
	if side == Front {
		b.frontFrozen = true
	} else {
		b.backFrozen = true
	}
}

// Unfreeze clears a freeze gate set by Freeze.
func (b *Buffer) Unfreeze(side Side) {
	b.lock()
	defer b.unlock()
	if side == Front {
		b.frontFrozen = false
	} else {
		b.backFrozen = false
	}
}
