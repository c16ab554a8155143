package pool

import (
	"sync/atomic"
	"unsafe"

	"github.com/sebastiencs/shared-arena/internal/debug"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe"
	"github.com/sebastiencs/shared-arena/pkg/xunsafe/layout"
)

// slotHeader is the small record that precedes every slot's storage inside a
// page. Given nothing but a slot's address (as returned by
// page.acquireFreeSlotCAS/Plain), headerOf recovers this record, and from it
// the owning page and the slot's index — without consulting any arena-side
// structure. This is the only mechanism by which a handle routes its
// release back to the right page and bit.
//
// strong is only used by SharedArena: it is the per-object clone count
// backing SharedHandle.Clone/Release/Weak.Upgrade, set to 1 when the slot is
// allocated and torn down (its free bit set again) when it drops to 0. Arena and
// Pool never touch it, since their Handle is exclusive and has no concept
// of cloning.
type slotHeader[T any] struct {
	page   *page[T]
	index  uint8
	strong atomic.Int32
}

// cell is a slot and its header laid out contiguously, header first, so that
// the header's offset from the slot is a fixed, compile-time-computable
// constant for a given T. A page is an array of 63 cells plus its bitfield.
type cell[T any] struct {
	header slotHeader[T]
	value  T
}

// cellOffset returns the byte offset of value within cell[T]. It is not a
// compile-time constant (unsafe.Offsetof on a generic type parameter isn't),
// but it is cheap and the same for every cell of a given T.
func cellOffset[T any]() uintptr {
	var c cell[T]
	off := unsafe.Offsetof(c.value)

	debug.Assert(off%uintptr(layout.Align[T]()) == 0,
		"cell[%T].value at offset %d is misaligned for alignment %d", c.value, off, layout.Align[T]())

	return off
}

// headerOf recovers the slotHeader immediately preceding slot. slot must be
// a pointer previously returned by page.acquireFreeSlotCAS/Plain for the
// same T; passing any other pointer is undefined behavior in release
// builds, and a MisuseError in debug builds where it is detectable.
func headerOf[T any](slot *T) *slotHeader[T] {
	return xunsafe.ByteAdd[slotHeader[T]](slot, -int(cellOffset[T]()))
}
