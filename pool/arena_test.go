package pool

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func TestArena_CrossGoroutineRelease(t *testing.T) {
	Convey("Arena allocated on one goroutine, released from many", t, func() {
		a := NewArena[int]()

		const count = 500
		handles := make([]Handle[int], count)
		for i := range handles {
			h, err := a.Alloc(i)
			require.NoError(t, err)
			handles[i] = h
		}
		So(a.Stats().UsedSlots, ShouldEqual, count)

		var wg sync.WaitGroup
		wg.Add(count)
		for i := range handles {
			go func(h Handle[int]) {
				defer wg.Done()
				h.Release()
			}(handles[i])
		}
		wg.Wait()

		Convey("a subsequent alloc on the owner goroutine drains the incoming releases", func() {
			_, err := a.Alloc(0)
			So(err, ShouldBeNil)
			So(a.Stats().UsedSlots, ShouldEqual, 1)
		})
	})
}

func TestArena_AllocInPlace(t *testing.T) {
	Convey("AllocInPlace initializes the slot via the callback", t, func() {
		a := NewArena[[]int]()
		h, err := a.AllocInPlace(func(s *[]int) {
			*s = append(*s, 1, 2, 3)
		})
		So(err, ShouldBeNil)
		So(*h.Deref(), ShouldResemble, []int{1, 2, 3})
	})
}
