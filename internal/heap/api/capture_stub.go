//go:build !cgo || !linux

package api

import "github.com/omrinahum/heaptrace/internal/heap/stackdepot"

// foreignBacktrace is unavailable without cgo; preload mode cannot be
// active in that configuration, so an empty capture is correct.
func foreignBacktrace(frames *[stackdepot.MaxFrames]uintptr) int {
	return 0
}

func warmupBacktrace() {}
