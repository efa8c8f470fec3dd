// Package query serves searches, statistics and group navigation over any
// catalog.Store.
package query

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/eunmann/lineup/pkg/catalog"
)

// TrivialPolicy decides whether groups with at most one existing image are
// offered to the presentation layer. Groups are never removed from the store.
type TrivialPolicy string

const (
	KeepTrivial TrivialPolicy = "keep"
	HideTrivial TrivialPolicy = "hide"
)

// ParseTrivialPolicy parses "keep" or "hide". Empty means keep.
func ParseTrivialPolicy(s string) (TrivialPolicy, error) {
	switch p := TrivialPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return KeepTrivial, nil
	case KeepTrivial, HideTrivial:
		return p, nil
	default:
		return "", fmt.Errorf("invalid trivial group policy %q: must be keep or hide", s)
	}
}

// Options configures a Service.
type Options struct {
	TrivialGroups TrivialPolicy
	Stats         catalog.StatsOptions
	// SearchLimit applies to searches that carry no limit of their own.
	SearchLimit int
}

// Service is a read-only view over a store.
//
// Thread Safety: Service holds no mutable state. Its methods are as safe for
// concurrent use as the underlying store's reads.
type Service struct {
	store catalog.Store
	opts  Options
}

// New creates a Service over store.
func New(store catalog.Store, opts Options) *Service {
	if opts.TrivialGroups == "" {
		opts.TrivialGroups = KeepTrivial
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = catalog.DefaultSearchLimit
	}
	if opts.Stats == (catalog.StatsOptions{}) {
		opts.Stats = catalog.DefaultStatsOptions()
	}
	opts.Stats = opts.Stats.Normalized()
	return &Service{store: store, opts: opts}
}

// Store returns the underlying store.
func (s *Service) Store() catalog.Store {
	return s.store
}

// Search finds records whose field contains text, ignoring case. An empty
// field searches every free-text column. limit <= 0 uses the service default.
func (s *Service) Search(ctx context.Context, text, field string, limit int) ([]catalog.ImageRecord, error) {
	f, err := catalog.ParseSearchField(field)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.SearchLimit
	}
	q := catalog.SearchQuery{Text: text, Field: f, Limit: limit}

	if searcher, ok := s.store.(catalog.Searcher); ok {
		return searcher.Search(ctx, q)
	}
	var scanErr error
	out := catalog.ScanSearch(s.records(ctx, &scanErr), q)
	if scanErr != nil {
		return nil, scanErr
	}
	return out, nil
}

// AdvancedStatistics returns the statistical roll-up of the catalog.
func (s *Service) AdvancedStatistics(ctx context.Context) (catalog.AdvancedStats, error) {
	if sp, ok := s.store.(catalog.StatsProvider); ok {
		return sp.AdvancedStatistics(ctx, s.opts.Stats)
	}
	var scanErr error
	out := catalog.ScanStatistics(s.records(ctx, &scanErr), s.opts.Stats)
	if scanErr != nil {
		return catalog.AdvancedStats{}, scanErr
	}
	return out, nil
}

// MissingFiles lists paths currently flagged missing, without re-checking
// the filesystem.
func (s *Service) MissingFiles(ctx context.Context) ([]string, error) {
	if ml, ok := s.store.(catalog.MissingLister); ok {
		return ml.MissingFiles(ctx)
	}
	var scanErr error
	out := []string{}
	for r := range s.records(ctx, &scanErr) {
		if !r.FileExists {
			out = append(out, r.Path)
		}
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return out, nil
}

// Summary returns catalog-wide totals.
func (s *Service) Summary(ctx context.Context) (catalog.OverallSummary, error) {
	return s.store.OverallSummary(ctx)
}

// Group returns a group or an error wrapping catalog.ErrNotFound.
func (s *Service) Group(ctx context.Context, groupID string) (catalog.Group, error) {
	g, ok, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return catalog.Group{}, err
	}
	if !ok {
		return catalog.Group{}, fmt.Errorf("group %q: %w", groupID, catalog.ErrNotFound)
	}
	return g, nil
}

// GroupSummaries returns the summary of every group the policy shows, in id order.
func (s *Service) GroupSummaries(ctx context.Context) ([]catalog.GroupSummary, error) {
	ids, err := s.store.ListGroupIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.GroupSummary, 0, len(ids))
	for _, id := range ids {
		sum, ok, err := s.store.GetGroupSummary(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok || s.hidden(sum) {
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// VisibleGroups returns the ids the policy shows, in id order.
func (s *Service) VisibleGroups(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListGroupIDs(ctx)
	if err != nil {
		return nil, err
	}
	if s.opts.TrivialGroups == KeepTrivial {
		return ids, nil
	}
	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		sum, ok, err := s.store.GetGroupSummary(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok && !s.hidden(sum) {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

// IsTrivial reports whether a group has at most one existing image.
func (s *Service) IsTrivial(ctx context.Context, groupID string) (bool, error) {
	sum, ok, err := s.store.GetGroupSummary(ctx, groupID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("group %q: %w", groupID, catalog.ErrNotFound)
	}
	return sum.Trivial(), nil
}

// NextGroup returns the visible group after current, wrapping to the first.
// When current is not visible, the first visible group is returned. ok is
// false when no group is visible.
func (s *Service) NextGroup(ctx context.Context, current string) (next string, ok bool, err error) {
	visible, err := s.VisibleGroups(ctx)
	if err != nil {
		return "", false, err
	}
	if len(visible) == 0 {
		return "", false, nil
	}
	i, found := slices.BinarySearch(visible, current)
	if !found {
		return visible[0], true, nil
	}
	return visible[(i+1)%len(visible)], true, nil
}

func (s *Service) hidden(sum catalog.GroupSummary) bool {
	return s.opts.TrivialGroups == HideTrivial && sum.Trivial()
}

// records walks the store in canonical order through the Store interface.
// The first error stops the walk and is stored in errp.
func (s *Service) records(ctx context.Context, errp *error) iter.Seq[catalog.ImageRecord] {
	return func(yield func(catalog.ImageRecord) bool) {
		ids, err := s.store.ListGroupIDs(ctx)
		if err != nil {
			*errp = err
			return
		}
		for _, id := range ids {
			g, ok, err := s.store.GetGroup(ctx, id)
			if err != nil {
				*errp = err
				return
			}
			if !ok {
				*errp = fmt.Errorf("group %q vanished during scan: %w", id, catalog.ErrNotFound)
				return
			}
			for _, r := range g.Records {
				if !yield(r) {
					return
				}
			}
		}
	}
}
