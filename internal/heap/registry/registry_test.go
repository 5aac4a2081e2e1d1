package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omrinahum/heaptrace/internal/heap/provenance"
	"github.com/omrinahum/heaptrace/internal/heap/stackdepot"
)

func testStack(marker uintptr) *[stackdepot.MaxFrames]uintptr {
	var frames [stackdepot.MaxFrames]uintptr
	frames[0] = 0x1000
	frames[1] = marker
	return &frames
}

func TestAddContainsRemove(t *testing.T) {
	defer stackdepot.Reset()
	r := New()

	r.Add(0xdead0, 128, testStack(0x2000), 2, provenance.User)
	require.True(t, r.Contains(0xdead0))
	require.Equal(t, 1, r.Len())

	rec := r.Remove(0xdead0)
	require.NotNil(t, rec)
	require.Equal(t, uintptr(0xdead0), rec.Addr)
	require.Equal(t, uint64(128), rec.Size)
	require.False(t, r.Contains(0xdead0))
	require.Equal(t, 0, r.Len())
}

func TestRemoveAbsent(t *testing.T) {
	r := New()
	require.Nil(t, r.Remove(0xbeef))
}

func TestAddNilAddress(t *testing.T) {
	r := New()
	r.Add(0, 64, testStack(0x2000), 2, provenance.User)
	require.Equal(t, 0, r.Len())
}

// TestReplaceOnDuplicate covers the stale-record case: the real allocator
// can hand a just-freed address to another thread before the tracker
// observed the free, so a re-insert replaces rather than errors.
func TestReplaceOnDuplicate(t *testing.T) {
	defer stackdepot.Reset()
	r := New()

	r.Add(0xcafe0, 100, testStack(0x2000), 2, provenance.User)
	r.Add(0xcafe0, 200, testStack(0x3000), 2, provenance.Infrastructure)

	require.Equal(t, 1, r.Len())
	rec := r.Remove(0xcafe0)
	require.NotNil(t, rec)
	require.Equal(t, uint64(200), rec.Size)
	require.Equal(t, provenance.Infrastructure, rec.Provenance)
}

// TestProvenanceStability: the tag set at insert survives untouched for
// the record's lifetime.
func TestProvenanceStability(t *testing.T) {
	defer stackdepot.Reset()
	r := New()

	r.Add(0xaaa0, 8, testStack(0x2000), 2, provenance.Infrastructure)
	for i := 0; i < 3; i++ {
		snap := r.Snapshot()
		require.Len(t, snap, 1)
		require.Equal(t, provenance.Infrastructure, snap[0].Provenance)
	}
}

// TestStackIsPrivateCopy: mutating the capture buffer after Add must not
// change the stored stack.
func TestStackIsPrivateCopy(t *testing.T) {
	defer stackdepot.Reset()
	r := New()

	frames := testStack(0x2000)
	r.Add(0xbbb0, 16, frames, 2, provenance.User)

	frames[1] = 0xffff // scratch buffer reused by the next capture

	rec := r.Remove(0xbbb0)
	require.NotNil(t, rec)
	st := stackdepot.Get(rec.Stack)
	require.NotNil(t, st)
	require.Equal(t, uintptr(0x2000), st.PC[1])
}

func TestDrainAndVisit(t *testing.T) {
	defer stackdepot.Reset()
	r := New()

	r.Add(0x100, 10, testStack(0x2000), 2, provenance.User)
	r.Add(0x200, 20, testStack(0x2000), 2, provenance.Infrastructure)
	r.Add(0x300, 30, testStack(0x2000), 2, provenance.User)

	var visited []uintptr
	r.DrainAndVisit(func(rec *Record) {
		visited = append(visited, rec.Addr)
	})

	require.Len(t, visited, 3)
	require.Equal(t, 0, r.Len())

	// Draining an empty registry visits nothing.
	r.DrainAndVisit(func(*Record) { t.Fatal("visitor called on empty registry") })
}

// TestConcurrentAccess drives inserts, probes and removals from many
// goroutines at once; the single-mutex design must keep the table
// consistent with no lost records.
func TestConcurrentAccess(t *testing.T) {
	defer stackdepot.Reset()
	r := New()

	const goroutines = 8
	const perG = 500

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base uintptr) {
			defer wg.Done()
			for i := uintptr(0); i < perG; i++ {
				addr := base + i*16
				r.Add(addr, 32, testStack(0x2000), 2, provenance.User)
				if !r.Contains(addr) {
					t.Errorf("address %#x vanished between Add and Contains", addr)
					return
				}
				if r.Remove(addr) == nil {
					t.Errorf("address %#x missing on Remove", addr)
					return
				}
			}
		}(uintptr(0x10000 * (g + 1)))
	}
	wg.Wait()

	require.Equal(t, 0, r.Len())
}
