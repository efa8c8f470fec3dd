// Package memstore is the transient catalog backend: the whole catalog held
// as an immutable in-memory snapshot that each Load or Revalidate replaces.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/existence"
	"github.com/eunmann/lineup/pkg/humanfmt"
	"github.com/eunmann/lineup/pkg/logging"
	"github.com/eunmann/lineup/pkg/membudget"
	"github.com/eunmann/lineup/pkg/memdiag"
)

// Options configures a Store.
type Options struct {
	// Validator is used by Revalidate. Nil uses existence.NewOS().
	Validator existence.Validator
	// Budget bounds snapshot memory. Nil uses membudget.DefaultFraction of system RAM.
	Budget *membudget.Budget
}

// Store holds a catalog in memory. Reads take a snapshot pointer under a
// read lock and then work lock-free on immutable data.
type Store struct {
	mu        sync.RWMutex
	snap      *snapshot
	reserved  uint64
	closed    bool
	validator existence.Validator
	budget    *membudget.Budget
}

var (
	_ catalog.Store         = (*Store)(nil)
	_ catalog.Searcher      = (*Store)(nil)
	_ catalog.StatsProvider = (*Store)(nil)
	_ catalog.MissingLister = (*Store)(nil)
)

// New creates an empty store.
func New(opts Options) *Store {
	if opts.Validator == nil {
		opts.Validator = existence.NewOS()
	}
	if opts.Budget == nil {
		opts.Budget = membudget.NewFromSystemRAM(membudget.DefaultFraction)
	}
	empty, _ := newSnapshot(&catalog.Catalog{}, "")
	return &Store{snap: empty, validator: opts.Validator, budget: opts.Budget}
}

func (s *Store) current() (*snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, catalog.ErrClosed
	}
	return s.snap, nil
}

// Load validates cat, builds a new snapshot and swaps it in.
func (s *Store) Load(ctx context.Context, cat *catalog.Catalog) (catalog.LoadResult, error) {
	start := time.Now()
	if _, err := s.current(); err != nil {
		return catalog.LoadResult{}, err
	}
	if err := catalog.Validate(cat); err != nil {
		return catalog.LoadResult{}, err
	}

	loadID := uuid.NewString()
	log := logctx.FromContext(ctx).With().Str("load_id", loadID).Str("backend", "memory").Logger()

	next, err := newSnapshot(cat, loadID)
	if err != nil {
		return catalog.LoadResult{}, fmt.Errorf("build group index: %w", err)
	}
	s.swap(next, func(within bool) {
		if !within {
			log.Warn().
				Str("snapshot", humanfmt.Bytes(int64(next.bytes))).
				Str("budget", humanfmt.Bytes(int64(s.budget.Total()))).
				Msg("catalog exceeds memory budget")
		}
	})
	memdiag.LogAgainstBudget(log, "load", next.bytes, s.budget.Total())

	logging.PhaseComplete(log, "load", time.Since(start)).
		Str("source", cat.Source).
		Int("groups", len(next.ids)).
		Int("images", len(next.records)).
		Int("dropped_rows", cat.DroppedRows).
		Bytes("snapshot_bytes", int64(next.bytes)).
		Log("catalog loaded")

	return catalog.LoadResult{
		LoadID: loadID,
		Groups: len(next.ids),
		Images: len(next.records),
	}, nil
}

// swap installs next and moves the budget reservation over to it.
func (s *Store) swap(next *snapshot, onReserve func(within bool)) {
	within := s.budget.TryReserve(next.bytes)
	if onReserve != nil {
		onReserve(within)
	}

	s.mu.Lock()
	prev := s.reserved
	s.snap = next
	s.reserved = 0
	if within {
		s.reserved = next.bytes
	}
	s.mu.Unlock()

	s.budget.Release(prev)
}

func (s *Store) ListGroupIDs(_ context.Context) ([]string, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.ids), nil
}

func (s *Store) GetGroup(_ context.Context, groupID string) (catalog.Group, bool, error) {
	snap, err := s.current()
	if err != nil {
		return catalog.Group{}, false, err
	}
	i, ok := snap.index.lookup(groupID)
	if !ok {
		return catalog.Group{}, false, nil
	}
	return snap.group(i), true, nil
}

func (s *Store) GetGroupSummary(ctx context.Context, groupID string) (catalog.GroupSummary, bool, error) {
	g, ok, err := s.GetGroup(ctx, groupID)
	if err != nil || !ok {
		return catalog.GroupSummary{}, ok, err
	}
	return g.Summary(), true, nil
}

func (s *Store) OverallSummary(_ context.Context) (catalog.OverallSummary, error) {
	snap, err := s.current()
	if err != nil {
		return catalog.OverallSummary{}, err
	}
	return snap.summary, nil
}

// Revalidate re-checks every path and swaps in a snapshot with the new flags.
func (s *Store) Revalidate(ctx context.Context) (catalog.RevalidateResult, error) {
	start := time.Now()
	snap, err := s.current()
	if err != nil {
		return catalog.RevalidateResult{}, err
	}
	log := logctx.FromContext(ctx).With().Str("backend", "memory").Logger()

	res := catalog.RevalidateResult{Checked: len(snap.records), Missing: []string{}}
	exists := make([]bool, len(snap.records))
	progress := logging.NewScanProgress(log, "revalidate", int64(len(snap.records)), 10000)
	for i := range snap.records {
		r := &snap.records[i]
		exists[i] = s.validator.Exists(r.Path)
		if exists[i] != r.FileExists {
			res.Changed++
		}
		if !exists[i] {
			res.Missing = append(res.Missing, r.Path)
		}
		progress.Step()
	}
	progress.Done()

	if res.Changed > 0 {
		s.swap(snap.withExistence(exists), nil)
	}

	logging.PhaseComplete(log, "revalidate", time.Since(start)).
		Int("checked", res.Checked).
		Int("changed", res.Changed).
		Int("missing", len(res.Missing)).
		Log("revalidation complete")
	return res, nil
}

// Search scans every record in canonical order.
func (s *Store) Search(_ context.Context, q catalog.SearchQuery) ([]catalog.ImageRecord, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return catalog.ScanSearch(snap.all(), q), nil
}

// AdvancedStatistics aggregates by full scan.
func (s *Store) AdvancedStatistics(_ context.Context, opts catalog.StatsOptions) (catalog.AdvancedStats, error) {
	snap, err := s.current()
	if err != nil {
		return catalog.AdvancedStats{}, err
	}
	return catalog.ScanStatistics(snap.all(), opts), nil
}

// MissingFiles lists paths currently flagged missing, in canonical order.
func (s *Store) MissingFiles(_ context.Context) ([]string, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for i := range snap.records {
		if !snap.records[i].FileExists {
			out = append(out, snap.records[i].Path)
		}
	}
	return out, nil
}

// Close drops the snapshot. Further calls return catalog.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.snap = nil
	s.budget.Release(s.reserved)
	s.reserved = 0
	return nil
}
