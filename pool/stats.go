package pool

import "math/bits"

// Stats is a point-in-time snapshot of an arena's occupancy. It is only
// consistent when taken quiescently (no concurrent Alloc/Release in any
// other goroutine); under concurrent mutation the three fields may not add
// up, since they are not sampled atomically as a group.
type Stats struct {
	Pages     int
	FreeSlots int
	UsedSlots int
}

// statsFromPages derives Stats by walking every page an arena has created
// (its all-pages list, not its free-list, which omits full pages) and
// counting free bits, plus a stored total-pages counter for Pages; there is
// no dedicated atomic tally kept in lockstep with every Alloc/Release.
func statsFromPages[T any](totalPages int, walk func(yield func(*page[T]) bool)) Stats {
	s := Stats{Pages: totalPages}
	walk(func(p *page[T]) bool {
		free := countFree(p)
		s.FreeSlots += free
		s.UsedSlots += slotsPerPage - free
		return true
	})
	return s
}

func countFree[T any](p *page[T]) int {
	return bits.OnesCount64(p.bitfield.Load() & fullMask)
}
