// Package main builds libheaptrace.so, the preload shim.
//
// Compiled with -buildmode=c-shared, this package exports the four
// allocator symbols so that
//
//	LD_PRELOAD=libheaptrace.so ./target
//
// resolves the target's malloc, free, calloc and realloc to the tracker
// instead of libc. The exported functions are thin: all semantics live in
// internal/heap/api.
//
// Lifecycle is driven from C: see lifecycle.go for the constructor that
// primes the tracker when the linker maps the library and the destructor
// that emits the leak report when it unloads. The hooks live in a
// separate file because a preamble in a //export file may not contain
// definitions.
//
// Bootstrap caveat: a call into an exported Go function runs a cgo entry
// prelude that may itself need memory before the tracker has bound the
// real allocator. The façade absorbs this window by servicing bootstrap
// re-entries untracked (see api.ensureInit); the constructor ordering
// keeps the window to the first instants of process startup.
package main

/*
#include <stddef.h>
*/
import "C"

import (
	"unsafe"

	"github.com/omrinahum/heaptrace/internal/heap/api"
)

// heaptraceInit primes the tracker at library load: foreign (C-side)
// stack capture, allocator binding, registry construction.
//
//export heaptraceInit
func heaptraceInit() {
	api.SetForeignStacks(true)
	api.Init()
}

// heaptraceFini is the shutdown hook: drain the registry, write the leak
// report.
//
//export heaptraceFini
func heaptraceFini() {
	api.Fini()
}

// malloc is the exported replacement for malloc(3).
//
//export malloc
func malloc(size C.size_t) unsafe.Pointer {
	return api.Malloc(uintptr(size))
}

// free is the exported replacement for free(3).
//
//export free
func free(ptr unsafe.Pointer) {
	api.Free(ptr)
}

// calloc is the exported replacement for calloc(3).
//
//export calloc
func calloc(nmemb, size C.size_t) unsafe.Pointer {
	return api.Calloc(uintptr(nmemb), uintptr(size))
}

// realloc is the exported replacement for realloc(3).
//
//export realloc
func realloc(ptr unsafe.Pointer, size C.size_t) unsafe.Pointer {
	return api.Realloc(ptr, uintptr(size))
}

// main is required by buildmode=c-shared and never runs.
func main() {}
