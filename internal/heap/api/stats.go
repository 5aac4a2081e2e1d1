package api

import "sync/atomic"

// Runtime counters. All updated atomically on the tracking path; cheap
// enough to keep unconditionally and invaluable when deciding whether the
// tracker itself is the bottleneck.
var (
	allocsTracked    atomic.Uint64
	freesTracked     atomic.Uint64
	corruptionEvents atomic.Uint64
	recordsSkipped   atomic.Uint64
	liveBytes        atomic.Uint64
)

// Stats is a point-in-time snapshot of the tracker's counters.
type Stats struct {
	// AllocsTracked counts allocations inserted into the registry.
	AllocsTracked uint64
	// FreesTracked counts releases matched against a live record.
	FreesTracked uint64
	// CorruptionEvents counts double/invalid frees reported.
	CorruptionEvents uint64
	// RecordsSkipped counts allocations that succeeded but found no
	// registry to record them in. Re-entries served untracked during
	// initialization are not counted.
	RecordsSkipped uint64
	// LiveRecords is the current registry population.
	LiveRecords int
	// LiveBytes sums the sizes of live records.
	LiveBytes uint64
}

// GetStats returns a snapshot. Counters are read individually, so a
// snapshot taken during heavy tracking is approximate, never torn per
// field.
func GetStats() Stats {
	s := Stats{
		AllocsTracked:    allocsTracked.Load(),
		FreesTracked:     freesTracked.Load(),
		CorruptionEvents: corruptionEvents.Load(),
		RecordsSkipped:   recordsSkipped.Load(),
		LiveBytes:        liveBytes.Load(),
	}
	if r := reg; r != nil {
		s.LiveRecords = r.Len()
	}
	return s
}

func resetStats() {
	allocsTracked.Store(0)
	freesTracked.Store(0)
	corruptionEvents.Store(0)
	recordsSkipped.Store(0)
	liveBytes.Store(0)
}
