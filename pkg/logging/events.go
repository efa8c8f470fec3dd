package logging

import (
	"time"

	"github.com/eunmann/lineup/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// PhaseComplete starts a phase completion event (load, revalidate, export).
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.fields[key] = bytes
	if IsHumanMode() {
		ce.fields[key+"_h"] = humanfmt.Bytes(bytes)
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsHumanMode() {
		ce.fields[key+"_h"] = humanfmt.Count(n)
	}
	return ce
}

// Log emits the completion event at info level.
func (ce *CompletionEvent) Log(msg string) {
	e := ce.log.Info().
		Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsHumanMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// ScanProgress logs progress of a long synchronous scan every Every items.
// It is not safe for concurrent use; scans in lineup are single-goroutine.
type ScanProgress struct {
	log   zerolog.Logger
	phase string
	total int64
	done  int64
	every int64
	start time.Time
}

// NewScanProgress creates a progress logger for a scan over total items.
// An every value <= 0 disables intermediate events.
func NewScanProgress(log zerolog.Logger, phase string, total, every int64) *ScanProgress {
	return &ScanProgress{
		log:   log,
		phase: phase,
		total: total,
		every: every,
		start: time.Now(),
	}
}

// Step records one processed item and logs when a reporting boundary is crossed.
func (sp *ScanProgress) Step() {
	sp.done++
	if sp.every <= 0 || sp.done%sp.every != 0 {
		return
	}
	e := sp.log.Debug().
		Str("event", "scan_progress").
		Str("phase", sp.phase).
		Int64("done", sp.done).
		Int64("total", sp.total)
	if sp.total > 0 {
		e = e.Float64("progress_pct", float64(sp.done)*100.0/float64(sp.total))
	}
	e.Msg("scan progress")
}

// Done returns the number of items processed so far.
func (sp *ScanProgress) Done() int64 {
	return sp.done
}

// Elapsed returns time since the scan started.
func (sp *ScanProgress) Elapsed() time.Duration {
	return time.Since(sp.start)
}
