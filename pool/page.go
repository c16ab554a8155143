package pool

import (
	"math/bits"
	"sync/atomic"

	"github.com/sebastiencs/shared-arena/internal/debug"
	"github.com/sebastiencs/shared-arena/internal/xsync"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe/layout"
)

// slotsPerPage is the number of object slots per page. 63 rather than 64
// leaves the top bit of the bitfield as a tombstone/sentinel, reserved for
// future use (e.g. a "page retired" flag); implementations must preserve
// the sentinel semantics even though nothing sets it today.
const slotsPerPage = 63

// sentinelBit is bit 63 of a page's bitfield. It must always read 0.
const sentinelBit = uint64(1) << 63

// fullMask has bits 0..62 set: every data slot free.
const fullMask = sentinelBit - 1

// page is the core allocation unit shared, unchanged, by SharedArena, Arena
// and Pool. Every field that needs to support concurrent access is typed as
// an atomic: this is what lets the atomic variants and the non-atomic Pool
// variant share one data model — Pool simply never contends on these
// fields, so a plain Load/Store is always equivalent to a CAS loop that
// succeeds on its first attempt.
type page[T any] struct {
	_ xunsafe.NoCopy

	// bitfield: bit i (0 <= i < 63) set means cells[i] is free. Bit 63 is
	// the reserved sentinel and must stay 0.
	bitfield atomic.Uint64

	// next links this page onto whichever free-list currently holds it
	// (an arena's primary free-list, or, for Arena[T], the MPSC incoming
	// list that cross-goroutine releases land on). The tag exists for the
	// lists that see concurrent pushers; single-owner lists write it with
	// StorePlain, which leaves the tag unchanged.
	next xsync.TaggedPtr[page[T]]

	// allNext chains every page an arena has ever created, regardless of
	// free-list membership: a page that fills up is unlinked from the
	// free-list entirely, so Stats walks this list instead to still see it.
	// It is set once at creation and never mutated again, so no atomic is
	// needed even for SharedArena.
	allNext *page[T]

	cells [slotsPerPage]cell[T]
}

func newPage[T any]() *page[T] {
	p := new(page[T])
	p.bitfield.Store(fullMask)

	for i := range p.cells {
		p.cells[i].header = slotHeader[T]{page: p, index: uint8(i)}
	}

	debug.Log([]any{"%v", debug.Dict("page", "addr", p, "slots", slotsPerPage, "bytes", layout.Size[T]())}, "new page", "allocated")

	return p
}

// acquireFreeSlotCAS clears the lowest free bit using a compare-and-swap
// loop, for use by the variants where concurrent allocators and/or
// deallocators may touch the same page (SharedArena, Arena).
func (p *page[T]) acquireFreeSlotCAS() (index uint8, slot *T, ok bool) {
	for {
		old := p.bitfield.Load()
		free := old & fullMask
		if free == 0 {
			return 0, nil, false
		}

		i := uint8(bits.TrailingZeros64(free))
		next := old &^ (uint64(1) << i)

		if p.bitfield.CompareAndSwap(old, next) {
			debug.Assert(old&sentinelBit == 0, "sentinel bit set on page %p", p)
			return i, &p.cells[i].value, true
		}
	}
}

// acquireFreeSlotPlain is the non-atomic equivalent used by Pool[T], where
// the caller is always the sole goroutine touching this page.
func (p *page[T]) acquireFreeSlotPlain() (index uint8, slot *T, ok bool) {
	old := p.bitfield.Load()
	free := old & fullMask
	if free == 0 {
		return 0, nil, false
	}

	i := uint8(bits.TrailingZeros64(free))
	p.bitfield.Store(old &^ (uint64(1) << i))

	return i, &p.cells[i].value, true
}

// releaseSlotCAS sets bit index, for use by the variants where
// deallocations may race with allocations or other deallocations on the
// same page. It reports whether the page was completely full before this
// release (wasFull — the page must be re-linked onto a free-list) and
// whether it is now completely empty (nowEmpty; no arena variant acts on
// it).
func (p *page[T]) releaseSlotCAS(index uint8) (wasFull, nowEmpty bool) {
	bit := uint64(1) << index

	for {
		old := p.bitfield.Load()
		assertSlot(old&bit == 0, "double release of slot %d on page %p", index, p)

		next := old | bit
		if p.bitfield.CompareAndSwap(old, next) {
			return old&fullMask == 0, next&fullMask == fullMask
		}
	}
}

// releaseSlotPlain is the non-atomic equivalent used by Pool[T].
func (p *page[T]) releaseSlotPlain(index uint8) (wasFull, nowEmpty bool) {
	bit := uint64(1) << index
	old := p.bitfield.Load()

	assertSlot(old&bit == 0, "double release of slot %d on page %p", index, p)

	next := old | bit
	p.bitfield.Store(next)

	return old&fullMask == 0, next&fullMask == fullMask
}

func (p *page[T]) isFull() bool {
	return p.bitfield.Load()&fullMask == 0
}

func (p *page[T]) isEmpty() bool {
	return p.bitfield.Load()&fullMask == fullMask
}

// slotPointer returns the address of cells[index].value. Exposed for tests
// that need to assert address stability across reallocation.
func (p *page[T]) slotPointer(index uint8) *T {
	return &p.cells[index].value
}
