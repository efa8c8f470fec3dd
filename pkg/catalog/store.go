package catalog

import "context"

// Store is the contract both catalog backends satisfy.
//
// Mutating calls (Load, Revalidate) must be serialized by the caller.
// Reads may run concurrently with each other once a Load has returned.
type Store interface {
	// Load replaces the stored catalog. Readers observe either the previous
	// catalog or the new one in full. On error the previous catalog is kept.
	Load(ctx context.Context, cat *Catalog) (LoadResult, error)

	// ListGroupIDs returns group ids in ascending order.
	ListGroupIDs(ctx context.Context) ([]string, error)

	// GetGroup returns the group with its records in canonical order.
	// ok is false for an unknown id.
	GetGroup(ctx context.Context, groupID string) (g Group, ok bool, err error)

	// GetGroupSummary returns derived counts for a group. ok is false for an unknown id.
	GetGroupSummary(ctx context.Context, groupID string) (s GroupSummary, ok bool, err error)

	// OverallSummary returns catalog-wide totals.
	OverallSummary(ctx context.Context) (OverallSummary, error)

	// Revalidate re-checks every stored path and updates FileExists in place.
	// Group membership and master assignment are never changed.
	Revalidate(ctx context.Context) (RevalidateResult, error)

	// Close releases resources. Calling it again is a no-op.
	Close() error
}

// Searcher is implemented by stores that can answer a search without a full
// scan through the Store interface. Results are in canonical order.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]ImageRecord, error)
}

// StatsProvider is implemented by stores that compute statistics natively.
type StatsProvider interface {
	AdvancedStatistics(ctx context.Context, opts StatsOptions) (AdvancedStats, error)
}

// MissingLister is implemented by stores that can list missing paths directly.
type MissingLister interface {
	MissingFiles(ctx context.Context) ([]string, error)
}

// LoadResult describes a completed Load.
type LoadResult struct {
	LoadID string
	Groups int
	Images int
	// FailedRows counts records the store could not write. They are absent
	// from the stored catalog.
	FailedRows int
	// Warnings lists consistency repairs the store made while writing.
	Warnings []ConsistencyWarning
}

// RevalidateResult describes a completed Revalidate.
type RevalidateResult struct {
	Checked int
	// Changed counts records whose FileExists flipped.
	Changed int
	// Missing lists paths that do not exist, in canonical order.
	Missing []string
}
