package pool

import (
	"sync/atomic"

	"github.com/sebastiencs/shared-arena/internal/debug"
	"github.com/sebastiencs/shared-arena/internal/xsync"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe"
)

// SharedArena is a fixed-size object pool for T safe to allocate from and
// release from any number of goroutines concurrently. Every hot-path
// operation — acquiring a slot, releasing a slot, pushing or popping a page
// from the free-list — is a single compare-and-swap or a short CAS retry
// loop; nothing here ever blocks.
type SharedArena[T any] struct {
	freelist sharedFreelist[T]
	allHead  xsync.TaggedPtr[page[T]]
	pages    atomic.Int64
}

// NewSharedArena constructs a SharedArena, pre-allocating the number of
// pages requested by WithInitialPages (default 1).
func NewSharedArena[T any](opts ...Option) *SharedArena[T] {
	cfg := applyOptions(opts)
	a := &SharedArena[T]{}
	for i := uint32(0); i < cfg.initialPages; i++ {
		a.addPage()
	}
	return a
}

func (a *SharedArena[T]) addPage() *page[T] {
	pg := newPage[T]()
	a.freelist.push(pg)
	a.linkAllPages(pg)
	a.pages.Add(1)
	return pg
}

// linkAllPages records pg on the permanent, all-goroutines-visible list
// Stats walks. It is a plain Treiber push: every page is pushed exactly
// once, by whichever goroutine created it, and never removed.
func (a *SharedArena[T]) linkAllPages(pg *page[T]) {
	for {
		head, tag := a.allHead.LoadTagged()
		pg.allNext = head
		if a.allHead.CompareAndSwap(head, tag, pg) {
			return
		}
	}
}

// Alloc reserves a slot and stores v into it, returning a reference-counted
// handle. Safe to call from any goroutine.
func (a *SharedArena[T]) Alloc(v T) (SharedHandle[T], error) {
	return a.AllocInPlace(func(slot *T) { *slot = v })
}

// AllocWith reserves a slot and runs f against it to initialize it in
// place. If f returns an error the slot is returned to the arena before
// this method returns; the error is wrapped in *ErrInitializerFailed.
func (a *SharedArena[T]) AllocWith(f func(*T) error) (SharedHandle[T], error) {
	slot, ok := a.reserve()
	if !ok {
		return SharedHandle[T]{}, ErrAllocationFailure
	}

	if ferr := runInitializer(slot, f); ferr != nil {
		a.release(slot)
		return SharedHandle[T]{}, &ErrInitializerFailed{Err: ferr}
	}

	return newSharedHandle(slot, a.release), nil
}

// AllocInPlace reserves a slot and runs f against it; f is not expected to
// fail (use AllocWith for fallible initialization).
func (a *SharedArena[T]) AllocInPlace(f func(*T)) (SharedHandle[T], error) {
	slot, ok := a.reserve()
	if !ok {
		return SharedHandle[T]{}, ErrAllocationFailure
	}
	f(slot)
	return newSharedHandle(slot, a.release), nil
}

func (a *SharedArena[T]) reserve() (*T, bool) {
	pg := a.freelist.popOrRotate()
	if pg == nil {
		pg = a.addPage()
	}

	index, slot, ok := pg.acquireFreeSlotCAS()
	for !ok {
		// A concurrent allocator took the page's last free slot between
		// popOrRotate and the acquire; look for another page.
		if pg = a.freelist.popOrRotate(); pg == nil {
			pg = a.addPage()
		}
		index, slot, ok = pg.acquireFreeSlotCAS()
	}

	if pg.isFull() {
		a.freelist.unlinkIfHead(pg)
	}

	headerOf(slot).strong.Store(1)

	xunsafe.Ping(slot)
	debug.Log(nil, "shared arena alloc", "page %p slot %d", pg, index)
	return slot, true
}

// release is invoked once a slot's strong count reaches 0. It may run on
// any goroutine.
func (a *SharedArena[T]) release(slot *T) {
	hdr := headerOf(slot)
	xunsafe.Clear(slot, 1)

	wasFull, _ := hdr.page.releaseSlotCAS(hdr.index)
	if wasFull {
		a.freelist.push(hdr.page)
	}
	debug.Log(nil, "shared arena release", "page %p slot %d", hdr.page, hdr.index)
}

// Stats reports this arena's current occupancy. Only consistent when
// called quiescently, i.e. with no concurrent Alloc/Release in any
// goroutine.
func (a *SharedArena[T]) Stats() Stats {
	return statsFromPages[T](int(a.pages.Load()), func(yield func(*page[T]) bool) {
		for pg := a.allHead.Load(); pg != nil; pg = pg.allNext {
			if !yield(pg) {
				return
			}
		}
	})
}

// Close severs this arena's own references to its pages (its free-list head
// and its all-pages list). Pages still referenced by a live SharedHandle or
// Weak remain reachable through that handle (a handle's slot pointer is a
// pointer into the page's own storage, which keeps the whole page — and so
// every other slot in it — alive) and continue to operate normally.
//
// Close does not unlink pages from one another: a reachable page still
// points at other pages through its free-list and all-pages links, so a
// page with no live handle is collected only once no reachable page links
// to it. Handles also keep the arena value itself reachable through their
// release callback, and a release that frees a slot of a full page pushes
// that page back onto the arena's free-list.
//
// Close does not block and does not itself free anything: it only drops
// the arena's own hold. Close must not be called concurrently with Alloc or
// with a handle's Release; like dropping a value in any language, the
// caller must first quiesce every other user of the arena.
func (a *SharedArena[T]) Close() {
	a.freelist = sharedFreelist[T]{}
	a.allHead = xsync.TaggedPtr[page[T]]{}
	a.pages.Store(0)
}
