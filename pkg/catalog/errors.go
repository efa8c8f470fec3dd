package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an unknown group id. Store lookups report absence
	// with a boolean; this sentinel is for callers that need an error value.
	ErrNotFound = errors.New("group not found")
	// ErrInvalidCatalog indicates a catalog that breaks a structural invariant.
	ErrInvalidCatalog = errors.New("invalid catalog")
	// ErrUnknownField indicates a search on an unrecognised field name.
	ErrUnknownField = errors.New("unknown search field")
	// ErrClosed indicates use of a store after Close.
	ErrClosed = errors.New("store closed")
)

// StoreUnavailableError reports that a durable store could not be opened or locked.
type StoreUnavailableError struct {
	Path string
	Err  error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("catalog store %s unavailable: %v", e.Path, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Consistency warning kinds.
const (
	WarnDuplicateMaster = "duplicate_master"
	WarnMasterRepaired  = "master_repaired"
	WarnOrphanImages    = "orphan_images"
)

// ConsistencyWarning records a non-fatal inconsistency that was corrected or
// detected. It is logged and surfaced as a value, never returned as an error.
type ConsistencyWarning struct {
	GroupID string `json:"group_id,omitempty" yaml:"group_id,omitempty"`
	Kind    string `json:"kind" yaml:"kind"`
	Detail  string `json:"detail" yaml:"detail"`
}

func (w ConsistencyWarning) String() string {
	if w.GroupID == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
	}
	return fmt.Sprintf("%s in group %s: %s", w.Kind, w.GroupID, w.Detail)
}
