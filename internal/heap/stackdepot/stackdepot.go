// Package stackdepot stores deduplicated allocation-site stacks.
//
// Every tracked allocation carries the call stack that produced it. Hot
// allocation sites fire thousands of times with byte-identical stacks, so
// the depot keeps a single copy of each unique stack and hands records a
// 64-bit handle. A record's stack is therefore a private, immutable copy:
// the capturing goroutine's scratch buffer can be reused the moment Put
// returns.
//
// Storage is a sync.Map keyed by an xxhash of the frames. Entries are
// never evicted during tracking; Reset drops the whole depot at shutdown
// after the leak report has been written.
package stackdepot

import (
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// MaxFrames bounds a captured stack. Sixteen return addresses is enough to
// see through allocation wrappers to the interesting caller without making
// every record carry a screenful.
const MaxFrames = 16

// Stack is one deduplicated allocation-site stack. PC holds return
// addresses most-recent first; only the first Len entries are valid.
type Stack struct {
	PC  [MaxFrames]uintptr
	Len int
}

var depot sync.Map // uint64 handle → *Stack

// Put copies frames[:n] into the depot and returns the stack's handle.
// If an identical stack is already stored the existing handle is returned
// and nothing is allocated.
//
// n of zero returns handle 0, the "no stack" sentinel (stack capture can
// legitimately come up empty, e.g. foreign capture in a build without
// cgo).
//
// Safe for concurrent use.
func Put(frames *[MaxFrames]uintptr, n int) uint64 {
	if n <= 0 {
		return 0
	}
	if n > MaxFrames {
		n = MaxFrames
	}

	h := hashFrames(frames, n)
	if _, ok := depot.Load(h); ok {
		return h
	}

	st := &Stack{Len: n}
	copy(st.PC[:], frames[:n])
	depot.Store(h, st)
	return h
}

// Get returns the stack for a handle, or nil for handle 0 or an unknown
// handle. Safe for concurrent use.
func Get(handle uint64) *Stack {
	if handle == 0 {
		return nil
	}
	v, ok := depot.Load(handle)
	if !ok {
		return nil
	}
	return v.(*Stack)
}

// hashFrames computes xxhash over the first n program counters. The PCs
// are hashed as their raw machine words; two stacks collide only if
// xxhash collides, which we accept (a collision merges two allocation
// sites in the report, it never loses a leak).
func hashFrames(frames *[MaxFrames]uintptr, n int) uint64 {
	b := unsafe.Slice((*byte)(unsafe.Pointer(&frames[0])), n*int(unsafe.Sizeof(uintptr(0))))
	h := xxhash.Sum64(b)
	if h == 0 {
		h = 1 // keep 0 reserved for "no stack"
	}
	return h
}

// Len reports the number of unique stacks currently stored. O(n); used by
// tests, never on the tracking path.
func Len() int {
	n := 0
	depot.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reset drops every stored stack. Called after the shutdown report and by
// tests that need a clean slate. Not safe concurrently with Put/Get.
func Reset() {
	depot = sync.Map{}
}
