// Package rtalloc binds the genuine C allocator primitives.
//
// When libheaptrace is preloaded it shadows malloc, free, calloc and
// realloc for the whole process. Every intercepted call still has to be
// serviced by the real allocator, and the tracker's own bookkeeping must
// reach it without bouncing through the interception layer again. This
// package resolves the next implementation of each primitive in the
// dynamic linker's resolution chain (dlsym with RTLD_NEXT) and publishes
// the resolved pointers for the lifetime of the loaded library.
//
// Bind() runs exactly once, driven by the tracker's initialization flag.
// After Bind() the pointers are immutable; readers need no synchronization
// beyond the acquire implied by the tracker's initialized flag.
//
// Bootstrap rule: nothing in this package may call the intercepted entry
// points. The bridges below jump straight through the resolved pointers.
package rtalloc

/*
#cgo linux LDFLAGS: -ldl

#ifndef _GNU_SOURCE
#define _GNU_SOURCE
#endif
#include <dlfcn.h>
#include <stddef.h>

typedef void *(*heaptrace_malloc_fn)(size_t);
typedef void (*heaptrace_free_fn)(void *);
typedef void *(*heaptrace_calloc_fn)(size_t, size_t);
typedef void *(*heaptrace_realloc_fn)(void *, size_t);

// heaptrace_next resolves the next definition of name after this shared
// object. RTLD_NEXT is the whole point of the exercise: it skips our own
// exported allocator symbols and lands on the libc implementation.
static void *heaptrace_next(const char *name) {
	return dlsym(RTLD_NEXT, name);
}

// Static bridges. cgo cannot call a C function pointer directly, so each
// primitive gets a trampoline that takes the resolved pointer as its first
// argument. The trampolines do nothing else; in particular they do not
// allocate.
static void *heaptrace_call_malloc(void *fn, size_t size) {
	return ((heaptrace_malloc_fn)fn)(size);
}

static void heaptrace_call_free(void *fn, void *ptr) {
	((heaptrace_free_fn)fn)(ptr);
}

static void *heaptrace_call_calloc(void *fn, size_t nmemb, size_t size) {
	return ((heaptrace_calloc_fn)fn)(nmemb, size);
}

static void *heaptrace_call_realloc(void *fn, void *ptr, size_t size) {
	return ((heaptrace_realloc_fn)fn)(ptr, size);
}
*/
import "C"

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Resolved allocator entry points. Written once by Bind, read-only after.
//
// The pointers are stored as unsafe.Pointer rather than typed C function
// pointers so that tests can swap in a Go-backed fake via SetForTesting
// without dragging cgo types through the rest of the tracker.
var (
	mallocPtr  unsafe.Pointer
	freePtr    unsafe.Pointer
	callocPtr  unsafe.Pointer
	reallocPtr unsafe.Pointer
)

// Test seam. When non-nil the Go implementations are used instead of the
// resolved C pointers. Installed by SetForTesting; never touched in a
// preloaded process.
var testHooks *Hooks

// Hooks is a Go-backed replacement for the real allocator, used by tests
// to exercise the full tracking path without cgo interception.
type Hooks struct {
	Malloc  func(size uintptr) unsafe.Pointer
	Free    func(ptr unsafe.Pointer)
	Calloc  func(nmemb, size uintptr) unsafe.Pointer
	Realloc func(ptr unsafe.Pointer, size uintptr) unsafe.Pointer
}

// bindFailure is written with a raw write(2) before terminating. A fixed
// byte string: at this point the process has no working allocator, so no
// formatted I/O of any kind is safe.
var bindFailure = []byte("[heaptrace] fatal: cannot resolve real malloc/free via RTLD_NEXT\n")

// Bind resolves the four allocator primitives from the dynamic linker's
// successor chain. Called exactly once, from the tracker's init path,
// before any tracking state is touched.
//
// If malloc or free cannot be resolved the process is terminated with an
// async-signal-safe raw write plus exit. Nothing that could re-enter the
// (unresolvable) allocator is called on that path.
func Bind() {
	if testHooks != nil {
		return
	}

	mallocPtr = unsafe.Pointer(C.heaptrace_next(cName("malloc")))
	freePtr = unsafe.Pointer(C.heaptrace_next(cName("free")))
	callocPtr = unsafe.Pointer(C.heaptrace_next(cName("calloc")))
	reallocPtr = unsafe.Pointer(C.heaptrace_next(cName("realloc")))

	if mallocPtr == nil || freePtr == nil {
		_, _ = unix.Write(2, bindFailure)
		unix.Exit(1)
	}
}

// Bound reports whether the real allocator has been resolved (or a test
// fake installed). The tracker consults this instead of poking at the
// pointers directly.
func Bound() bool {
	return testHooks != nil || (mallocPtr != nil && freePtr != nil)
}

// Malloc allocates size bytes from the real allocator.
func Malloc(size uintptr) unsafe.Pointer {
	if h := testHooks; h != nil {
		return h.Malloc(size)
	}
	return unsafe.Pointer(C.heaptrace_call_malloc(mallocPtr, C.size_t(size)))
}

// Free releases ptr through the real allocator. ptr must have been
// returned by one of the real primitives; passing a tracked-but-foreign
// address here is exactly the corruption the tracker exists to catch, so
// callers validate first.
func Free(ptr unsafe.Pointer) {
	if h := testHooks; h != nil {
		h.Free(ptr)
		return
	}
	C.heaptrace_call_free(freePtr, ptr)
}

// Calloc allocates a zeroed array of nmemb elements of size bytes each.
// Falls back to the real malloc if the platform's calloc could not be
// resolved; the façade tracks the product either way.
func Calloc(nmemb, size uintptr) unsafe.Pointer {
	if h := testHooks; h != nil {
		return h.Calloc(nmemb, size)
	}
	if callocPtr == nil {
		p := unsafe.Pointer(C.heaptrace_call_malloc(mallocPtr, C.size_t(nmemb*size)))
		if p != nil {
			clear(unsafe.Slice((*byte)(p), nmemb*size))
		}
		return p
	}
	return unsafe.Pointer(C.heaptrace_call_calloc(callocPtr, C.size_t(nmemb), C.size_t(size)))
}

// Realloc resizes ptr to size bytes through the real allocator.
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if h := testHooks; h != nil {
		return h.Realloc(ptr, size)
	}
	return unsafe.Pointer(C.heaptrace_call_realloc(reallocPtr, ptr, C.size_t(size)))
}

// SetForTesting installs a Go-backed allocator and returns a restore
// function. Tests use this to run the complete intercept → track → release
// pipeline on fake addresses without a preloaded shim.
//
// Not safe for concurrent use with live tracking; install before the
// tracker initializes (or between Reset calls).
func SetForTesting(h *Hooks) func() {
	prev := testHooks
	testHooks = h
	return func() { testHooks = prev }
}

// cName builds a NUL-terminated symbol name on the Go heap. C.CString is
// off limits here: it calls the C malloc we are in the middle of
// resolving. The Go heap is serviced by the runtime's own mmap arenas and
// never touches the intercepted allocator.
func cName(s string) *C.char {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return (*C.char)(unsafe.Pointer(&b[0]))
}
