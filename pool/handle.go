package pool

import (
	"runtime"
	"sync/atomic"

	"github.com/sebastiencs/shared-arena/internal/debug"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe"
)

// Handle is an exclusive, non-copyable handle to a T allocated by Arena or
// Pool. Exactly one Handle exists per live slot; it must be released
// exactly once, returning the slot to its page's free-list.
type Handle[T any] struct {
	_       xunsafe.NoCopy
	slot    *T
	release func(*T)
	guard   debug.Value[*releaseGuard]
}

// releaseGuard backs the debug-build finalizer that reports a Handle or
// SharedHandle abandoned without a matching Release. It only exists at all
// in debug builds, since [debug.Value] collapses to nothing otherwise.
type releaseGuard struct {
	released atomic.Bool
}

func attachGuard(onLeak func()) debug.Value[*releaseGuard] {
	var v debug.Value[*releaseGuard]
	if !debug.Enabled {
		return v
	}

	g := &releaseGuard{}
	*v.Get() = g
	runtime.SetFinalizer(g, func(g *releaseGuard) {
		if !g.released.Load() {
			onLeak()
		}
	})
	return v
}

func markReleased(v debug.Value[*releaseGuard]) {
	if !debug.Enabled {
		return
	}
	if g := *v.Get(); g != nil {
		g.released.Store(true)
	}
}

// newHandle is called by Arena/Pool with the release callback appropriate
// to that variant's free-list discipline.
func newHandle[T any](slot *T, release func(*T)) Handle[T] {
	guard := attachGuard(func() {
		debug.Log(nil, "handle leak", "slot %p released via finalizer, not Release()", slot)
		release(slot)
	})
	return Handle[T]{slot: slot, release: release, guard: guard}
}

// Deref returns a pointer to the held value. Valid until Release is called.
func (h *Handle[T]) Deref() *T { return h.slot }

// Release returns the slot to its owning page. The handle must not be used
// again afterward; doing so is undefined behavior, and in debug builds the
// header routing or the free-bit state will usually trip an assertion.
func (h *Handle[T]) Release() {
	markReleased(h.guard)
	h.release(h.slot)
	h.slot = nil
}

// SharedHandle is a reference-counted handle to a T allocated by
// SharedArena. Cloning bumps the slot's strong count; Release decrements
// it, freeing the slot back to its page only once the count reaches zero.
type SharedHandle[T any] struct {
	slot    *T
	release func(*T)
	guard   debug.Value[*releaseGuard]
}

// newSharedHandle wraps slot as one strong reference to it. Callers
// (SharedArena's AllocWith/AllocInPlace, after reserve has set the count to
// 1; Clone; Weak.Upgrade) are responsible for having
// already bumped the slot's strong count appropriately before calling this.
func newSharedHandle[T any](slot *T, release func(*T)) SharedHandle[T] {
	guard := attachGuard(func() {
		debug.Log(nil, "shared handle leak", "slot %p released via finalizer, not Release()", slot)
		dropSharedRef(slot, release)
	})
	return SharedHandle[T]{slot: slot, release: release, guard: guard}
}

// Deref returns a pointer to the held value. Valid until every clone of
// this handle has been released.
func (h *SharedHandle[T]) Deref() *T { return h.slot }

// Clone returns a second handle to the same slot, incrementing its
// reference count. The slot is only freed once every clone (and the
// original) has been released.
func (h *SharedHandle[T]) Clone() SharedHandle[T] {
	headerOf(h.slot).strong.Add(1)
	return newSharedHandle(h.slot, h.release)
}

// Weak returns a weak handle to the same slot: it does not keep the slot
// alive, and Upgrade may fail if every strong handle has already released.
func (h *SharedHandle[T]) Weak() Weak[T] {
	return Weak[T]{slot: h.slot, release: h.release}
}

// Release decrements the slot's reference count, freeing it back to its
// page once the count reaches zero.
func (h *SharedHandle[T]) Release() {
	markReleased(h.guard)
	dropSharedRef(h.slot, h.release)
	h.slot = nil
}

func dropSharedRef[T any](slot *T, release func(*T)) {
	if headerOf(slot).strong.Add(-1) == 0 {
		release(slot)
	}
}

// Weak is a non-owning reference to a slot allocated by SharedArena. It
// never keeps the slot alive; Upgrade succeeds iff the slot's strong count
// is still nonzero at the moment it runs.
type Weak[T any] struct {
	slot    *T
	release func(*T)
}

// Upgrade attempts to produce a new strong [SharedHandle] to the same slot.
// It observes the strong count atomically: ok is false if every strong
// handle has already been released, in which case the returned handle is
// the zero value and must not be used.
func (w Weak[T]) Upgrade() (h SharedHandle[T], ok bool) {
	hdr := headerOf(w.slot)
	for {
		n := hdr.strong.Load()
		if n == 0 {
			return SharedHandle[T]{}, false
		}
		if hdr.strong.CompareAndSwap(n, n+1) {
			return newSharedHandle(w.slot, w.release), true
		}
	}
}
