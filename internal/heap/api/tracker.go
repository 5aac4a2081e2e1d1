// Package api implements the allocator interception façade.
//
// These are the four replacement entry points the preload shim exports in
// place of the system allocator, and the same functions the heap façade
// package exposes to in-process Go callers. Each one follows the same
// skeleton: make sure the runtime is initialized, delegate to the real
// allocator, and — with the reentrancy guard held — update the allocation
// registry. The release path additionally validates the address against
// the registry and reports corruption instead of forwarding a free the
// underlying allocator never issued.
//
// The package owns all process-wide mutable state of the tracker: the
// initialization flag, the shutting-down flag, the registry pointer, the
// immutable configuration and the per-goroutine guard contexts. Everything
// else in the module is either stateless or owned by this package's
// initialization.
package api

import (
	"math/bits"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/omrinahum/heaptrace/internal/heap/provenance"
	"github.com/omrinahum/heaptrace/internal/heap/registry"
	"github.com/omrinahum/heaptrace/internal/heap/report"
	"github.com/omrinahum/heaptrace/internal/heap/rtalloc"
	"github.com/omrinahum/heaptrace/internal/heap/stackdepot"
)

// Initialization states. The flag moves monotonically left to right and
// never back (Reset is test-only).
const (
	stateUninitialized uint32 = iota
	stateInitializing
	stateInitialized
)

var (
	// initState is the monotonic three-position initialization flag.
	// stateInitialized is published with a store-release; every entry
	// point loads it before touching reg or cfg.
	initState atomic.Uint32

	// shuttingDown disables corruption detection once the shutdown hook
	// starts tearing the registry down. Destructor-phase frees from the
	// target arrive after user records were drained; their addresses are
	// intentionally unknown and must pass straight through.
	shuttingDown atomic.Bool

	// enabled gates the tracking path; the real allocator is always
	// delegated to regardless.
	enabled atomic.Bool

	// finiDone makes the shutdown hook idempotent.
	finiDone atomic.Bool

	// reg is the allocation registry. Written once during init.
	reg *registry.Registry

	// cfg is read once during init and immutable afterwards.
	cfg config

	// foreignMode is latched by the preload shim before initialization;
	// ensureInit copies it into cfg.
	foreignMode bool
)

// SetForeignStacks switches stack capture to the C-side backtrace. The
// preload shim calls this from its constructor, before the first
// intercepted allocation; calling it after init has no effect.
func SetForeignStacks(on bool) {
	foreignMode = on
}

// Init makes the tracker ready: real-allocator binding, registry
// construction, configuration read, capture warmup. Idempotent, and
// invoked lazily by every entry point, so an explicit call is only needed
// when the host wants initialization cost out of the first allocation.
func Init() {
	ensureInit(currentContext())
}

// ensureInit drives the uninitialized → initializing → initialized
// transition. Returns false only for a bootstrap re-entry: an allocation
// made by initialization itself (dlsym, backtrace warmup), which must be
// serviced without tracking because the registry does not exist yet.
func ensureInit(ctx *gctx) bool {
	if initState.Load() == stateInitialized {
		return true
	}
	if ctx.inTracker {
		return false
	}

	if initState.CompareAndSwap(stateUninitialized, stateInitializing) {
		ctx.inTracker = true
		rtalloc.Bind()
		cfg = loadConfig()
		cfg.foreignStacks = foreignMode
		reg = registry.New()
		if cfg.foreignStacks {
			warmupBacktrace()
		}
		enabled.Store(true)
		ctx.inTracker = false
		initState.Store(stateInitialized)
		return true
	}

	// Another goroutine won the race; wait for it to publish the state.
	// Init does no I/O and takes no locks we could be holding, so this
	// spin is short and cannot deadlock.
	for initState.Load() != stateInitialized {
		runtime.Gosched()
	}
	return true
}

// Malloc is the replacement allocate entry point.
func Malloc(size uintptr) unsafe.Pointer {
	ctx := currentContext()
	if !ensureInit(ctx) {
		if rtalloc.Bound() {
			return rtalloc.Malloc(size)
		}
		return nil
	}

	ptr := rtalloc.Malloc(size)
	if ptr == nil {
		// A null return passes through untouched; there is nothing to
		// track and the caller sees exactly what the real allocator said.
		return nil
	}
	track(ctx, uintptr(ptr), uint64(size))
	return ptr
}

// Calloc is the replacement allocate-and-zero entry point. The tracked
// size is the element count times the element size, saturating on
// overflow — the real calloc fails such requests anyway, and a saturated
// record is only reachable if it somehow does not.
func Calloc(nmemb, size uintptr) unsafe.Pointer {
	ctx := currentContext()
	if !ensureInit(ctx) {
		if rtalloc.Bound() {
			return rtalloc.Calloc(nmemb, size)
		}
		return nil
	}

	ptr := rtalloc.Calloc(nmemb, size)
	if ptr == nil {
		return nil
	}

	hi, total := bits.Mul64(uint64(nmemb), uint64(size))
	if hi != 0 {
		total = ^uint64(0)
	}
	track(ctx, uintptr(ptr), total)
	return ptr
}

// Free is the replacement release entry point. A release of an address
// the registry does not own is a double or invalid free: it is reported
// and the real free is suppressed, because handing libc an address it
// does not think is allocated corrupts the arena and turns a reportable
// bug into a crash somewhere else.
func Free(ptr unsafe.Pointer) {
	ctx := currentContext()
	if !ensureInit(ctx) {
		if rtalloc.Bound() {
			rtalloc.Free(ptr)
		}
		return
	}
	if ptr == nil {
		return
	}

	// During shutdown the registry's own records are being torn down and
	// destructor-phase frees are expected to miss; corruption detection
	// is off and everything forwards to the real free.
	if shuttingDown.Load() {
		rtalloc.Free(ptr)
		return
	}

	if ctx.inTracker || !enabled.Load() {
		rtalloc.Free(ptr)
		return
	}

	addr := uintptr(ptr)
	ctx.inTracker = true
	rec := reg.Remove(addr)
	if rec == nil {
		corruptionEvents.Add(1)
		n := captureStack(ctx)
		report.Corruption(addr, ctx.frames[:], n, cfg.stackTraces)
		ctx.inTracker = false
		return // real free deliberately not called
	}
	freesTracked.Add(1)
	liveBytes.Add(^(rec.Size - 1))
	ctx.inTracker = false

	rtalloc.Free(ptr)
}

// Realloc is the replacement reallocate entry point. The degenerate forms
// defer to Malloc and Free so the registry sees exactly one semantics for
// each; the general form retires the old record and inserts a fresh one,
// which covers the moved and in-place cases alike.
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return Malloc(size)
	}
	if size == 0 {
		Free(ptr)
		return nil
	}

	ctx := currentContext()
	if !ensureInit(ctx) {
		if rtalloc.Bound() {
			return rtalloc.Realloc(ptr, size)
		}
		return nil
	}

	newPtr := rtalloc.Realloc(ptr, size)

	if !ctx.inTracker && enabled.Load() {
		ctx.inTracker = true
		if rec := reg.Remove(uintptr(ptr)); rec != nil {
			freesTracked.Add(1)
			liveBytes.Add(^(rec.Size - 1))
		}
		if newPtr != nil {
			n := captureStack(ctx)
			class := provenance.Classify(ctx.frames[:], n)
			reg.Add(uintptr(newPtr), uint64(size), &ctx.frames, n, class)
			allocsTracked.Add(1)
			liveBytes.Add(uint64(size))
		}
		ctx.inTracker = false
	}
	return newPtr
}

// track records one successful allocation. No-op when the guard is
// already held: that is a bookkeeping allocation and tracking it is the
// recursion this guard exists to prevent.
func track(ctx *gctx, addr uintptr, size uint64) {
	if ctx.inTracker || !enabled.Load() {
		return
	}
	ctx.inTracker = true
	if reg == nil {
		// Initialization raced us out of a registry; the user's
		// allocation already succeeded, so the only honest move is to
		// say so once and under-report.
		recordsSkipped.Add(1)
		report.Skipped(addr)
		ctx.inTracker = false
		return
	}

	n := captureStack(ctx)
	class := provenance.Classify(ctx.frames[:], n)
	reg.Add(addr, size, &ctx.frames, n, class)
	allocsTracked.Add(1)
	liveBytes.Add(size)
	ctx.inTracker = false
}

// Fini is the shutdown hook: it flips the shutting-down flag, drains the
// registry through the leak reporter and releases the depot. Runs once;
// the preload shim wires it to library unload, in-process hosts defer it
// from main.
func Fini() {
	if initState.Load() != stateInitialized {
		return
	}
	if !finiDone.CompareAndSwap(false, true) {
		return
	}

	// Order matters: shutting-down must be visible before any record is
	// torn down, so destructor-phase frees of drained addresses pass
	// through instead of reporting phantom corruption.
	shuttingDown.Store(true)
	enabled.Store(false)

	var user []registry.Record
	var infraCount, infraBytes uint64
	reg.DrainAndVisit(func(rec *registry.Record) {
		if rec.Provenance == provenance.Infrastructure {
			infraCount++
			infraBytes += rec.Size
			return
		}
		user = append(user, *rec)
	})

	// Stable output: itemize by ascending address. The registry hands
	// records back in table order, which is meaningless to a reader.
	sort.Slice(user, func(i, j int) bool { return user[i].Addr < user[j].Addr })

	report.LeakReport(user, infraCount, infraBytes, cfg.stackTraces)
	stackdepot.Reset()
}

// Enabled reports whether the tracking path is active.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled toggles the tracking path at runtime. Delegation to the real
// allocator is unaffected; disabling stops registry updates and forwards
// frees without validation. An allocation made while disabled has no
// record, so freeing it after tracking is re-enabled is reported as a
// corruption event and its real free is suppressed.
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Reset returns the tracker to its pre-init state. Test-only: it is not
// safe against concurrent entry-point calls and deliberately unexported
// from the public façade.
func Reset() {
	initState.Store(stateUninitialized)
	shuttingDown.Store(false)
	enabled.Store(false)
	finiDone.Store(false)
	reg = nil
	cfg = config{}
	foreignMode = false
	contexts = sync.Map{}
	ctxCount.Store(0)
	resetStats()
	stackdepot.Reset()
}
