// Package provenance labels allocations as user or infrastructure.
//
// The leak report must not drown a real application leak in noise from
// memory the platform retains on purpose: stdio buffers, locale tables,
// the dynamic loader's own bookkeeping. The classifier looks at exactly
// one frame — the immediate caller of the allocator — and asks who owns
// it. Allocations made by the C library (or the Go standard library when
// the tracker is linked in-process) for its own machinery are tagged
// Infrastructure and summarized rather than itemized.
//
// Only the caller frame is examined — the first frame past the
// interception path itself. An allocation made by libc on behalf of user
// code (strdup, getline, asprintf) has a user frame there and is
// correctly reported as a user leak; going deeper would start hiding real
// leaks behind transitive library calls. Matching the owning object or
// package is the coarsest signal that works without symbolization.
//
// Nothing here may call the intercepted C allocator: classification runs
// inside the tracking path. The dladdr query used for foreign frames is
// documented (and relied upon by every native profiler) not to allocate.
package provenance

import (
	"runtime"
	"strings"
)

// Class is an allocation's origin tag. Assigned once at insert and never
// changed for the lifetime of the record.
type Class uint8

const (
	// User marks an allocation attributable to application code — a leak
	// candidate, itemized in the report.
	User Class = iota
	// Infrastructure marks an allocation the platform made for its own
	// machinery. Counted in the report summary, never itemized.
	Infrastructure
)

// String returns the tag name for reports and tests.
func (c Class) String() string {
	switch c {
	case User:
		return "user"
	case Infrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// interceptPrefixes name the packages that make up the interception path
// itself. A C preload library is a single malloc frame; the Go rendition
// inserts its façade and entry-point wrappers, so "frame 1" in the
// classic rule means the first frame past these.
var interceptPrefixes = []string{
	"github.com/omrinahum/heaptrace/heap.",
	"github.com/omrinahum/heaptrace/internal/heap/api.",
}

// Classify labels a captured allocation stack. frames holds return
// addresses most-recent first: frames[0] is the interception entry point
// itself and the frame examined is the immediate caller of the allocator
// — the first frame that is not part of the interception path.
//
// Too few frames means there is no evidence either way; err toward
// reporting and tag the allocation User.
func Classify(frames []uintptr, n int) Class {
	if n > len(frames) {
		n = len(frames)
	}
	if n < 2 {
		return User
	}

	// Frames are return addresses; stepping back one byte lands inside the
	// call instruction, so code inlined right after a call site is never
	// mistaken for the caller.
	i := 1
	for i < n && isInterceptFrame(frames[i]-1) {
		i++
	}
	if i >= n {
		return User
	}
	pc := frames[i] - 1

	// A PC the Go runtime knows about belongs to Go code linked into this
	// process. Runtime- and standard-library-owned packages are the Go
	// analogue of libc infrastructure.
	if fn := runtime.FuncForPC(pc); fn != nil {
		return classifyGoFunc(fn.Name())
	}

	// Foreign PC: resolve the owning shared object through the runtime
	// linker. The C library making an allocation for itself shows up here.
	if obj, ok := objectForPC(pc); ok && isLibcObject(obj) {
		return Infrastructure
	}
	return User
}

// isInterceptFrame reports whether a frame belongs to the interception
// path: the tracker's façade packages for Go PCs, or the preloaded shim
// object for foreign PCs.
func isInterceptFrame(pc uintptr) bool {
	if fn := runtime.FuncForPC(pc); fn != nil {
		name := fn.Name()
		for _, p := range interceptPrefixes {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
		// cgo glue between the exported shim symbols and the façade.
		return strings.HasPrefix(name, "runtime.cgocallback") ||
			strings.HasPrefix(name, "runtime.crosscall")
	}
	if obj, ok := objectForPC(pc); ok {
		base := obj
		if i := strings.LastIndexByte(obj, '/'); i >= 0 {
			base = obj[i+1:]
		}
		return strings.Contains(base, "heaptrace")
	}
	return false
}

// classifyGoFunc decides ownership from a fully qualified Go symbol name
// such as "net.(*Resolver).lookup" or "github.com/acme/app.run".
//
// Standard-library packages have no dot in the leading element of their
// import path; anything rooted at a domain is user code, and so is the
// main package — that is the program under test.
func classifyGoFunc(name string) Class {
	if strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "runtime/") {
		return Infrastructure
	}

	head := name
	if slash := strings.IndexByte(name, '/'); slash >= 0 {
		head = name[:slash]
	} else if dot := strings.IndexByte(name, '.'); dot >= 0 {
		head = name[:dot]
	}
	if head == "main" {
		return User
	}
	if !strings.Contains(head, ".") {
		// No domain in the import path: standard library.
		return Infrastructure
	}
	return User
}

// isLibcObject reports whether a shared-object path names the platform C
// library. Matching the filename is deliberate: it is stable across
// distributions while anything finer would need symbol tables.
func isLibcObject(path string) bool {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	return strings.Contains(base, "libc.so") || strings.Contains(base, "libc-")
}
