// Package memdiag compares the Go heap with the memory a catalog snapshot
// was estimated to need.
package memdiag

import (
	"runtime"

	"github.com/rs/zerolog"

	"github.com/eunmann/lineup/pkg/humanfmt"
)

// divergenceWarnRatio is how far the heap may exceed the estimate before a
// warning is logged.
const divergenceWarnRatio = 2.0

// minWarnEstimate keeps tiny catalogs from triggering divergence warnings.
const minWarnEstimate = 64 << 20

// Stats holds the runtime figures memdiag reports.
type Stats struct {
	HeapAlloc uint64
	HeapInuse uint64
	Sys       uint64
	NumGC     uint32
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapAlloc: m.HeapAlloc,
		HeapInuse: m.HeapInuse,
		Sys:       m.Sys,
		NumGC:     m.NumGC,
	}
}

// Ratio returns heap bytes per estimated byte, 0 when estimate is 0.
func (s Stats) Ratio(estimate uint64) float64 {
	if estimate == 0 {
		return 0
	}
	return float64(s.HeapAlloc) / float64(estimate)
}

// Diverges reports whether the heap is far larger than a non-trivial estimate.
func (s Stats) Diverges(estimate uint64) bool {
	return estimate >= minWarnEstimate && s.Ratio(estimate) > divergenceWarnRatio
}

// LogAgainstBudget logs heap usage next to the snapshot estimate and the
// budget total. Reading MemStats stops the world, so nothing is read unless
// debug logging is on.
func LogAgainstBudget(log zerolog.Logger, reason string, estimate, budget uint64) {
	if log.GetLevel() > zerolog.DebugLevel || zerolog.GlobalLevel() > zerolog.DebugLevel {
		return
	}
	stats := Read()
	log.Debug().
		Str("reason", reason).
		Str("heap_alloc", humanfmt.Bytes(int64(stats.HeapAlloc))).
		Str("heap_inuse", humanfmt.Bytes(int64(stats.HeapInuse))).
		Str("sys_total", humanfmt.Bytes(int64(stats.Sys))).
		Str("estimate", humanfmt.Bytes(int64(estimate))).
		Str("budget", humanfmt.Bytes(int64(budget))).
		Float64("heap_vs_estimate", stats.Ratio(estimate)).
		Uint32("num_gc", stats.NumGC).
		Msg("memory stats")

	if stats.Diverges(estimate) {
		log.Warn().
			Str("heap_alloc", humanfmt.Bytes(int64(stats.HeapAlloc))).
			Str("estimate", humanfmt.Bytes(int64(estimate))).
			Float64("ratio", stats.Ratio(estimate)).
			Msg("heap usage far exceeds snapshot estimate")
	}
}
