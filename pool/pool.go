package pool

import (
	"fmt"

	"github.com/sebastiencs/shared-arena/internal/debug"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe"
)

// Pool is a fixed-size object pool for T where every Alloc and Release
// happens on the same goroutine. Because there is never any contention, its
// hot path never retries a compare-and-swap: it reads and writes the page
// bitfield directly.
type Pool[T any] struct {
	list     ownerFreelist[T]
	allPages *page[T]
	pages    int
}

// NewPool constructs a Pool, pre-allocating the number of pages requested
// by WithInitialPages (default 1).
func NewPool[T any](opts ...Option) *Pool[T] {
	cfg := applyOptions(opts)
	p := &Pool[T]{}
	for i := uint32(0); i < cfg.initialPages; i++ {
		p.addPage()
	}
	return p
}

func (p *Pool[T]) addPage() *page[T] {
	pg := newPage[T]()
	p.list.push(pg)
	pg.allNext = p.allPages
	p.allPages = pg
	p.pages++
	return pg
}

// Alloc reserves a slot and stores v into it, returning an exclusive handle.
func (p *Pool[T]) Alloc(v T) (Handle[T], error) {
	return p.AllocInPlace(func(slot *T) { *slot = v })
}

// AllocWith reserves a slot and runs f against it to initialize it in
// place. If f returns an error the slot is returned to the pool before this
// method returns; the error is wrapped in *ErrInitializerFailed.
func (p *Pool[T]) AllocWith(f func(*T) error) (h Handle[T], err error) {
	slot, ok := p.reserve()
	if !ok {
		return Handle[T]{}, ErrAllocationFailure
	}

	if ferr := runInitializer(slot, f); ferr != nil {
		p.releaseOwned(slot)
		return Handle[T]{}, &ErrInitializerFailed{Err: ferr}
	}

	return newHandle(slot, p.releaseOwned), nil
}

// AllocInPlace reserves a slot and runs f against it; f is not expected to
// fail (use AllocWith for fallible initialization).
func (p *Pool[T]) AllocInPlace(f func(*T)) (Handle[T], error) {
	slot, ok := p.reserve()
	if !ok {
		return Handle[T]{}, ErrAllocationFailure
	}
	f(slot)
	return newHandle(slot, p.releaseOwned), nil
}

func (p *Pool[T]) reserve() (*T, bool) {
	pg := p.list.popOrRotate()
	if pg == nil {
		pg = p.addPage()
	}

	index, slot, ok := pg.acquireFreeSlotPlain()
	if !ok {
		debug.Assert(false, "page %p reported not-full but acquire failed", pg)
		return nil, false
	}

	if pg.isFull() {
		p.list.unlinkIfHead(pg)
	}

	xunsafe.Ping(slot)
	debug.Log(nil, "pool alloc", "page %p slot %d", pg, index)
	return slot, true
}

func (p *Pool[T]) releaseOwned(slot *T) {
	hdr := headerOf(slot)
	xunsafe.Clear(slot, 1)

	wasFull, _ := hdr.page.releaseSlotPlain(hdr.index)
	if wasFull {
		p.list.push(hdr.page)
	}
	debug.Log(nil, "pool release", "page %p slot %d", hdr.page, hdr.index)
}

// Stats reports this pool's current occupancy. Only meaningful when called
// quiescently, i.e. not concurrently with Alloc/Release — which, for Pool,
// is every call site by construction.
func (p *Pool[T]) Stats() Stats {
	return statsFromPages[T](p.pages, func(yield func(*page[T]) bool) {
		for pg := p.allPages; pg != nil; pg = pg.allNext {
			if !yield(pg) {
				return
			}
		}
	})
}

func runInitializer[T any](slot *T, f func(*T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log(nil, "initializer panic", "%v in %v", r, debug.Func(f))
			err = fmt.Errorf("shared-arena: initializer panicked: %v", r)
		}
	}()
	return f(slot)
}
