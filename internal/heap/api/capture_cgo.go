//go:build cgo && linux

package api

/*
#include <execinfo.h>
*/
import "C"

import (
	"unsafe"

	"github.com/omrinahum/heaptrace/internal/heap/stackdepot"
)

// foreignBacktrace captures the C-side call stack through backtrace(3).
// Used only in preload mode, where the intercepted callers are native
// code invisible to runtime.Callers.
func foreignBacktrace(frames *[stackdepot.MaxFrames]uintptr) int {
	n := C.backtrace(
		(*unsafe.Pointer)(unsafe.Pointer(&frames[0])),
		C.int(len(frames)),
	)
	return int(n)
}

// warmupBacktrace forces backtrace's one-time lazy initialization.
// glibc's first backtrace call dlopens libgcc, which allocates; running
// it during init, inside the guard, keeps that allocation out of the
// tracked set and off the first user malloc's critical path.
func warmupBacktrace() {
	var scratch [4]unsafe.Pointer
	C.backtrace(&scratch[0], C.int(len(scratch)))
}
