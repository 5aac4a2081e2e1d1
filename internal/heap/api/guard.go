package api

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/omrinahum/heaptrace/internal/heap/goid"
	"github.com/omrinahum/heaptrace/internal/heap/stackdepot"
)

// gctx is the tracker's per-goroutine state. Only the owning goroutine
// ever touches it, so the fields need no synchronization.
type gctx struct {
	// inTracker is the reentrancy guard: true while this goroutine is
	// executing tracking logic. Allocations the tracker itself makes with
	// the guard set bypass the tracking path entirely, which is what
	// breaks the allocate → track → allocate cycle.
	//
	// The guard is deliberately per-goroutine. A single process-wide flag
	// would silently drop tracking for user allocations racing with a
	// bookkeeping allocation on another goroutine.
	inTracker bool

	// frames is the bounded scratch buffer for stack capture. Captured
	// frames are copied into the stack depot before the guard clears, so
	// the buffer is reusable on the next intercepted call.
	frames [stackdepot.MaxFrames]uintptr
}

var (
	// contexts maps goroutine IDs to their gctx. sync.Map because the
	// access pattern is read-mostly: each goroutine writes its entry once
	// and loads it on every intercepted allocation afterwards.
	contexts sync.Map // int64 → *gctx

	// ctxCount counts context creations to amortize dead-goroutine
	// cleanup.
	ctxCount atomic.Uint32
)

// cleanupInterval is how many context creations pass between scans for
// dead goroutines. Scanning costs one runtime.Stack(all=true), so it is
// amortized over many creations.
const cleanupInterval = 1024

// currentContext returns the gctx for the calling goroutine, creating and
// caching it on first use.
func currentContext() *gctx {
	gid := goid.Current()
	if v, ok := contexts.Load(gid); ok {
		return v.(*gctx)
	}

	ctx := &gctx{}
	contexts.Store(gid, ctx)
	maybeCleanup()
	return ctx
}

// maybeCleanup triggers a dead-goroutine sweep every cleanupInterval
// context creations. The sweep runs on a fresh goroutine so the
// intercepted allocation that tripped it is not held up.
func maybeCleanup() {
	if ctxCount.Add(1)%cleanupInterval == 0 {
		go cleanupDeadContexts()
	}
}

// cleanupDeadContexts drops cached contexts whose goroutines have exited.
// Contexts are tiny, but a server spawning short-lived goroutines for
// years would otherwise grow the map without bound.
func cleanupDeadContexts() {
	live := liveGoroutineIDs()
	liveSet := make(map[int64]struct{}, len(live))
	for _, gid := range live {
		liveSet[gid] = struct{}{}
	}

	contexts.Range(func(key, _ any) bool {
		gid := key.(int64)
		if _, ok := liveSet[gid]; !ok {
			contexts.Delete(gid)
		}
		return true
	})
}

// liveGoroutineIDs lists every live goroutine by parsing a full
// runtime.Stack dump. Expensive; only the amortized cleanup calls it.
func liveGoroutineIDs() []int64 {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return parseAllGIDs(buf[:n])
}

// parseAllGIDs extracts every "goroutine N [state]:" header from a
// runtime.Stack(all=true) dump.
func parseAllGIDs(buf []byte) []int64 {
	var gids []int64
	i := 0
	for i < len(buf) {
		end := i
		for end < len(buf) && buf[end] != '\n' {
			end++
		}
		line := buf[i:end]
		if len(line) >= 10 && string(line[:10]) == "goroutine " {
			if gid := goid.ParseHeader(line); gid != 0 {
				gids = append(gids, gid)
			}
		}
		i = end + 1
	}
	return gids
}
