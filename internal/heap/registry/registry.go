// Package registry is the concurrent address → allocation-record map.
//
// The registry is the single source of truth about live allocations: an
// address is present exactly while the real allocator has it handed out
// and the program has not released it. Everything the tracker reports —
// leaks at shutdown, double and invalid frees inline — derives from
// membership in this map.
//
// One mutex covers insert, remove and membership. Record construction and
// the final drop of an evicted record happen outside the critical section
// so the lock is held only for the table operation itself. There is no
// other lock in the tracker, so lock ordering is a non-issue.
package registry

import (
	"sync"
	"time"

	"github.com/cockroachdb/swiss"

	"github.com/omrinahum/heaptrace/internal/heap/provenance"
	"github.com/omrinahum/heaptrace/internal/heap/stackdepot"
)

// Record is the metadata held for one live allocation. Records are
// created strictly inside the façade's reentrancy guard and the stack
// handle points at a depot copy, so nothing in a Record aliases caller
// memory.
type Record struct {
	// Addr is the address the real allocator returned; it is the record's
	// identity and the table key.
	Addr uintptr

	// Size is the requested size in bytes. For calloc this is the
	// (saturating) product of count and element size; for realloc the new
	// size.
	Size uint64

	// Timestamp is the wall-clock second the allocation was tracked.
	// Diagnostic only; nothing orders on it.
	Timestamp int64

	// Stack is the depot handle for the allocation-site stack, 0 when
	// the capture was empty.
	Stack uint64

	// StackLen is the number of valid frames behind Stack.
	StackLen int

	// Provenance is assigned by the classifier at insert and never
	// changes for the record's lifetime.
	Provenance provenance.Class
}

// Registry maps raw addresses to allocation records. The zero value is
// not usable; call New.
type Registry struct {
	mu sync.Mutex
	m  swiss.Map[uintptr, *Record]
}

// addrHash mixes the pointer bits with a Fibonacci multiplier. Allocator
// addresses share low-bit alignment patterns that a pass-through hash
// would funnel into a handful of groups.
func addrHash(k *uintptr, seed uintptr) uintptr {
	const m = 11400714819323198485
	h := uint64(seed)
	h ^= uint64(*k) * m
	return uintptr(h)
}

// New returns an empty registry sized for a typical process's steady-state
// live set.
func New() *Registry {
	r := &Registry{}
	r.m.Init(1024, swiss.WithHash[uintptr, *Record](addrHash))
	return r
}

// Add inserts a record for addr. The stack is copied into the depot
// before the lock is taken, so the caller's scratch buffer is free for
// reuse as soon as Add returns.
//
// An address already present is replaced. Correct allocator semantics
// never produce that case from a single thread, but the real allocator
// may hand a just-freed address to another thread before the freeing
// thread's removal is observed; the stale record loses.
func (r *Registry) Add(addr uintptr, size uint64, stack *[stackdepot.MaxFrames]uintptr, stackLen int, class provenance.Class) {
	if addr == 0 {
		return
	}

	rec := &Record{
		Addr:       addr,
		Size:       size,
		Timestamp:  time.Now().Unix(),
		Stack:      stackdepot.Put(stack, stackLen),
		StackLen:   stackLen,
		Provenance: class,
	}

	r.mu.Lock()
	r.m.Put(addr, rec)
	r.mu.Unlock()
}

// Remove atomically looks up and deletes the record for addr. Returns
// the evicted record, nil when the address was not tracked — absence is
// the release path's corruption signal. The record leaves the table under
// the lock but its storage is reclaimed only after the caller drops the
// returned reference, outside the critical section.
func (r *Registry) Remove(addr uintptr) *Record {
	r.mu.Lock()
	rec, ok := r.m.Get(addr)
	if ok {
		r.m.Delete(addr)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return rec
}

// Contains reports whether addr is currently tracked. The release path
// does not call it: it validates through Remove, whose nil result marks
// a double or invalid free.
func (r *Registry) Contains(addr uintptr) bool {
	r.mu.Lock()
	_, ok := r.m.Get(addr)
	r.mu.Unlock()
	return ok
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.Lock()
	n := r.m.Len()
	r.mu.Unlock()
	return n
}

// DrainAndVisit invokes visitor for every live record, then deletes it.
// Shutdown only: it runs after user threads are done (library unload is a
// late event), so it deliberately takes no lock and is not safe against
// concurrent Add/Remove.
func (r *Registry) DrainAndVisit(visitor func(*Record)) {
	var addrs []uintptr
	r.m.All(func(addr uintptr, _ *Record) bool {
		addrs = append(addrs, addr)
		return true
	})
	for _, addr := range addrs {
		rec, ok := r.m.Get(addr)
		if !ok {
			continue
		}
		visitor(rec)
		r.m.Delete(addr)
	}
}

// Snapshot returns copies of all live records, ordered arbitrarily. Used
// by tests; takes the lock, unlike DrainAndVisit.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	out := make([]Record, 0, r.m.Len())
	r.m.All(func(_ uintptr, rec *Record) bool {
		out = append(out, *rec)
		return true
	})
	r.mu.Unlock()
	return out
}
