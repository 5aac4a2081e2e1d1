// Package goid extracts the current goroutine's identity.
//
// The tracker's reentrancy guard is per execution context — in Go, per
// goroutine — and it is consulted on every intercepted allocation, so
// extraction has to be cheap. Two implementations:
//
//   - goid_fast.go: reads goid straight out of the runtime g struct via
//     a tiny assembly getg stub (amd64/arm64, Go 1.23–1.25 layouts).
//   - goid_fallback.go: parses the header of runtime.Stack output. Slow,
//     but correct everywhere.
//
// This package deliberately contains no cgo: a cgo package cannot carry
// Go assembly, and the interception façade that imports it is a cgo
// boundary.
package goid

import (
	"runtime"
	"strconv"
)

// Current returns the calling goroutine's ID.
func Current() int64 {
	return currentFast()
}

// currentSlow extracts the goroutine ID by parsing the first line of
// runtime.Stack output, which always reads "goroutine N [state]:". Used
// directly on platforms without the assembly stub and as a safety net
// when getg comes back nil.
func currentSlow() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return ParseHeader(buf[:n])
}

// ParseHeader pulls the numeric ID out of a "goroutine N [state]:"
// header line. Returns 0 when the buffer does not look like one. Also
// used by the guard's dead-goroutine sweep, which walks a whole-process
// stack dump.
func ParseHeader(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	buf = buf[len(prefix):]

	end := 0
	for end < len(buf) && buf[end] >= '0' && buf[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}

	gid, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}
