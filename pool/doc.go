// Package pool implements a concurrent, fixed-size object pool for a single
// statically-known type T.
//
// Three allocator variants share the same 63-slot page layout and
// free-bit-scan allocation strategy but differ in what they assume about
// their caller's concurrency:
//
//   - [SharedArena] may be allocated from and released from any goroutine.
//   - [Arena] must be allocated from a single goroutine, but may be
//     released from any goroutine.
//   - [Pool] is single-goroutine throughout; it is the cheapest of the
//     three, since it never needs a compare-and-swap.
//
// Every variant exposes Alloc, AllocWith, AllocInPlace, and Stats. Alloc
// takes a value; AllocWith and AllocInPlace instead run a function against
// the freshly reserved, zero-valued slot, the latter without the option of
// reporting initialization failure. Handles returned by Alloc/AllocWith/
// AllocInPlace must be released exactly once with Release; SharedArena's
// handles are additionally cloneable and support a weak reference that does
// not keep a slot from being reused.
package pool
