package pool

import (
	"github.com/sebastiencs/shared-arena/internal/debug"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe"
)

// Arena is a fixed-size object pool for T where every Alloc/AllocWith call
// must come from the same goroutine, but Release may be called from any
// goroutine. Its own free-list is a plain, non-atomic singly-linked list
// (only the allocating goroutine ever touches it); cross-goroutine releases
// instead land on an MPSC incoming list, which the allocator drains at the
// start of every Alloc.
type Arena[T any] struct {
	list     ownerFreelist[T]
	incoming incomingList[T]
	allPages *page[T]
	pages    int
}

// NewArena constructs an Arena, pre-allocating the number of pages
// requested by WithInitialPages (default 1).
func NewArena[T any](opts ...Option) *Arena[T] {
	cfg := applyOptions(opts)
	a := &Arena[T]{}
	for i := uint32(0); i < cfg.initialPages; i++ {
		a.addPage()
	}
	return a
}

func (a *Arena[T]) addPage() *page[T] {
	pg := newPage[T]()
	a.list.push(pg)
	pg.allNext = a.allPages
	a.allPages = pg
	a.pages++
	return pg
}

// Alloc reserves a slot and stores v into it, returning an exclusive handle.
// Must be called from the same goroutine for the lifetime of this Arena.
func (a *Arena[T]) Alloc(v T) (Handle[T], error) {
	return a.AllocInPlace(func(slot *T) { *slot = v })
}

// AllocWith reserves a slot and runs f against it to initialize it in
// place. If f returns an error the slot is returned to the arena before
// this method returns; the error is wrapped in *ErrInitializerFailed.
func (a *Arena[T]) AllocWith(f func(*T) error) (Handle[T], error) {
	slot, ok := a.reserve()
	if !ok {
		return Handle[T]{}, ErrAllocationFailure
	}

	if ferr := runInitializer(slot, f); ferr != nil {
		a.release(slot)
		return Handle[T]{}, &ErrInitializerFailed{Err: ferr}
	}

	return newHandle(slot, a.release), nil
}

// AllocInPlace reserves a slot and runs f against it; f is not expected to
// fail (use AllocWith for fallible initialization).
func (a *Arena[T]) AllocInPlace(f func(*T)) (Handle[T], error) {
	slot, ok := a.reserve()
	if !ok {
		return Handle[T]{}, ErrAllocationFailure
	}
	f(slot)
	return newHandle(slot, a.release), nil
}

func (a *Arena[T]) drainIncoming() {
	for pg := a.incoming.drain(); pg != nil; {
		next := pg.next.Load()
		a.list.push(pg)
		pg = next
	}
}

func (a *Arena[T]) reserve() (*T, bool) {
	a.drainIncoming()

	pg := a.list.popOrRotate()
	if pg == nil {
		pg = a.addPage()
	}

	index, slot, ok := pg.acquireFreeSlotCAS()
	if !ok {
		debug.Assert(false, "page %p reported not-full but acquire failed", pg)
		return nil, false
	}

	if pg.isFull() {
		a.list.unlinkIfHead(pg)
	}

	xunsafe.Ping(slot)
	debug.Log(nil, "arena alloc", "page %p slot %d", pg, index)
	return slot, true
}

// release may run on any goroutine. It clears the slot's bit atomically and,
// if that promoted the page from full to has-free, pushes it onto the MPSC
// incoming list so the single allocating goroutine picks it up on its next
// Alloc — it cannot link onto a.list itself, since that list is not safe for
// concurrent access.
func (a *Arena[T]) release(slot *T) {
	hdr := headerOf(slot)
	xunsafe.Clear(slot, 1)

	wasFull, _ := hdr.page.releaseSlotCAS(hdr.index)
	if wasFull {
		a.incoming.push(hdr.page)
	}
	debug.Log(nil, "arena release", "page %p slot %d", hdr.page, hdr.index)
}

// Stats reports this arena's current occupancy. Only meaningful when called
// quiescently from the allocating goroutine, with no Release in flight on
// another goroutine.
func (a *Arena[T]) Stats() Stats {
	return statsFromPages[T](a.pages, func(yield func(*page[T]) bool) {
		for pg := a.allPages; pg != nil; pg = pg.allNext {
			if !yield(pg) {
				return
			}
		}
	})
}
