package pool

import (
	"github.com/sebastiencs/shared-arena/internal/debug"
	"github.com/sebastiencs/shared-arena/internal/xsync"
)

// sharedFreelist is the lock-free, ABA-safe stack of pages with at least one
// free slot, used by SharedArena where any goroutine may push (deallocate)
// or pop/rotate (allocate) concurrently. It is a Treiber stack: push and pop
// are both single CAS operations on the tagged head pointer.
type sharedFreelist[T any] struct {
	head xsync.TaggedPtr[page[T]]
}

// push links p onto the front of the list. Used both for freshly-created
// pages and for pages a release just promoted from full to has-free.
func (f *sharedFreelist[T]) push(p *page[T]) {
	for {
		head, tag := f.head.LoadTagged()
		p.next.Store(head)
		if f.head.CompareAndSwap(head, tag, p) {
			debug.Log(nil, "freelist push", "%p", p)
			return
		}
	}
}

// popOrRotate returns a page known to have a free slot, or nil if the list
// is empty. It never removes a has-free page from the list — only pages
// found to already be full (raced to empty by a concurrent allocator) are
// unlinked, since re-enqueueing a full page is never the allocator's job.
func (f *sharedFreelist[T]) popOrRotate() *page[T] {
	for {
		head, tag := f.head.LoadTagged()
		if head == nil {
			return nil
		}
		if !head.isFull() {
			return head
		}

		next := head.next.Load()
		if f.head.CompareAndSwap(head, tag, next) {
			debug.Log(nil, "freelist unlink full", "%p", head)
			continue
		}
		// Lost the race (someone else already rotated past head); reload.
	}
}

// unlinkIfHead removes p from the list iff it is still the current head.
// Called after an allocation consumes p's last free slot: p must not remain
// linked as "has free", but if a concurrent popOrRotate already unlinked it
// first, there is nothing left to do.
func (f *sharedFreelist[T]) unlinkIfHead(p *page[T]) {
	for {
		head, tag := f.head.LoadTagged()
		if head != p {
			return
		}

		next := p.next.Load()
		if f.head.CompareAndSwap(head, tag, next) {
			return
		}
	}
}

// ownerFreelist is the plain, non-atomic singly-linked free-list used by
// Arena and Pool: both variants guarantee that only a single goroutine ever
// calls alloc, so no compare-and-swap is needed here at all.
type ownerFreelist[T any] struct {
	head *page[T]
}

func (f *ownerFreelist[T]) push(p *page[T]) {
	p.next.StorePlain(f.head)
	f.head = p
}

func (f *ownerFreelist[T]) popOrRotate() *page[T] {
	for f.head != nil && f.head.isFull() {
		f.head = f.head.next.Load()
	}
	return f.head
}

func (f *ownerFreelist[T]) unlinkIfHead(p *page[T]) {
	if f.head == p {
		f.head = p.next.Load()
	}
}

// incomingList is the MPSC stack Arena's deallocating goroutines push onto
// when they promote a page from full to has-free: since Arena's primary
// free-list is plain and single-owner, a remote goroutine cannot link a
// page onto it directly. Instead it pushes here (concurrency-safe, same
// Treiber/tagged-pointer construction as sharedFreelist), and the single
// allocating goroutine drains the whole chain — via one atomic swap, so the
// drain itself never races with concurrent pushes — before every alloc.
type incomingList[T any] struct {
	head xsync.TaggedPtr[page[T]]
}

func (l *incomingList[T]) push(p *page[T]) {
	for {
		head, tag := l.head.LoadTagged()
		p.next.Store(head)
		if l.head.CompareAndSwap(head, tag, p) {
			return
		}
	}
}

// drain atomically takes the entire chain and returns its head; the caller
// (always the single owner goroutine) walks p.next to visit every page.
func (l *incomingList[T]) drain() *page[T] {
	for {
		head, tag := l.head.LoadTagged()
		if head == nil {
			return nil
		}
		if l.head.CompareAndSwap(head, tag, nil) {
			return head
		}
	}
}
