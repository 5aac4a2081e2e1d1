package heap_test

import (
	"fmt"

	"github.com/omrinahum/heaptrace/heap"
)

// Example shows the in-process mode: a Go program routing its native
// allocations through the tracker. In preload mode none of this appears
// in the target's code — the shim exports do the same calls.
func Example() {
	heap.Init()

	buf := heap.Malloc(1024)
	if buf == nil {
		fmt.Println("allocation failed")
		return
	}

	// ... hand buf to C code, fill it, use it ...

	heap.Free(buf)

	s := heap.GetStats()
	fmt.Printf("tracked %d allocation(s), %d live\n", s.AllocsTracked, s.LiveRecords)
	// Output:
	// tracked 1 allocation(s), 0 live
}
