// Package heap is the public façade of heaptrace, a dynamic
// memory-safety profiler for native allocations.
//
// heaptrace observes a process's use of the C allocator without modifying
// or recompiling it and reports three classes of heap-lifetime bugs:
//
//   - memory leaks: allocations still live at program termination;
//   - double frees: release of an address the allocator no longer owns;
//   - invalid frees: release of an address the allocator never returned.
//
// Each event carries the allocation-site stack. Leaks made by platform
// infrastructure for its own machinery (stdio buffers, locale tables) are
// counted but not itemized, so the report stays about the program under
// test.
//
// # Preload mode
//
// The usual deployment intercepts a whole native binary. The heaptrace
// tool builds the shim and runs the target under it:
//
//	$ heaptrace run ./myprogram arg1 arg2
//
// which is equivalent to
//
//	$ heaptrace build -o libheaptrace.so
//	$ LD_PRELOAD=$PWD/libheaptrace.so ./myprogram arg1 arg2
//
// The dynamic linker resolves malloc, free, calloc and realloc to the
// shim's exports; the shim delegates to the genuine libc implementations
// resolved via RTLD_NEXT and keeps the allocation registry up to date on
// the way through. The leak report is written to standard error when the
// library unloads.
//
// # In-process mode
//
// Go programs that manage C memory directly can link the tracker
// in-process and route allocations through this package:
//
//	package main
//
//	import "github.com/omrinahum/heaptrace/heap"
//
//	func main() {
//		heap.Init()
//		defer heap.Fini()
//
//		buf := heap.Malloc(1024)
//		// ... use buf ...
//		heap.Free(buf)
//	}
//
// # Configuration
//
// One environment variable, read once at initialization:
//
//	HEAPTRACE_STACKTRACE   "0" omits stack frames from reports;
//	                       absent or any other value includes them.
//
// # Limitations
//
// heaptrace does not detect out-of-bounds writes, does not see
// statically-allocated memory, and cannot intercept binaries statically
// linked against the C allocator. Allocations performed inside signal
// handlers may deadlock on the registry mutex; this is an acknowledged
// limitation shared with every mutex-based tracker.
package heap
