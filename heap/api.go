// Package heap provides the public API for the heaptrace allocation
// tracker.
//
// See doc.go for detailed documentation and examples.
package heap

import (
	"unsafe"

	internal "github.com/omrinahum/heaptrace/internal/heap/api"
)

// Init initializes the tracker: binds the real allocator, builds the
// allocation registry and reads configuration. Every entry point
// initializes lazily, so calling Init is only useful to move that cost
// off the first allocation.
//
// Init is safe to call multiple times (subsequent calls are no-ops).
func Init() {
	internal.Init()
}

// Fini emits the leak report and tears the tracker down. In a preloaded
// process the shim invokes it from the library-unload hook; in-process
// hosts defer it from main:
//
//	func main() {
//		heap.Init()
//		defer heap.Fini()
//		// ... rest of program
//	}
//
// Fini runs once; later calls are no-ops.
func Fini() {
	internal.Fini()
}

// Malloc allocates size bytes from the real allocator and tracks the
// result. Semantics match malloc(3), including a nil return on failure.
func Malloc(size uintptr) unsafe.Pointer {
	return internal.Malloc(size)
}

// Calloc allocates a zeroed array of nmemb elements of size bytes each,
// tracking the product as the allocation size. Semantics match
// calloc(3).
func Calloc(nmemb, size uintptr) unsafe.Pointer {
	return internal.Calloc(nmemb, size)
}

// Realloc resizes an allocation, retiring the old address's record and
// tracking the new one. Realloc(nil, n) behaves as Malloc(n);
// Realloc(p, 0) behaves as Free(p) and returns nil. Semantics match
// realloc(3).
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return internal.Realloc(ptr, size)
}

// Free releases an allocation. Releasing an address the tracker does not
// own — a double free, or a pointer that never came from the allocator —
// emits a corruption report and suppresses the underlying free.
func Free(ptr unsafe.Pointer) {
	internal.Free(ptr)
}

// Enabled reports whether the tracking path is active.
func Enabled() bool {
	return internal.Enabled()
}

// SetEnabled toggles tracking at runtime. Allocations made while
// disabled are serviced normally but not recorded, and frees made while
// disabled are forwarded without validation. Freeing an allocation from
// a disabled window after re-enabling reports it as a corruption event.
func SetEnabled(on bool) {
	internal.SetEnabled(on)
}

// Stats is a snapshot of the tracker's counters.
type Stats = internal.Stats

// GetStats returns a point-in-time snapshot of tracking statistics.
func GetStats() Stats {
	return internal.GetStats()
}
