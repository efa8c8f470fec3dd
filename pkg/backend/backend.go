// Package backend selects a catalog.Store implementation by name.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/existence"
	"github.com/eunmann/lineup/pkg/membudget"
	"github.com/eunmann/lineup/pkg/memstore"
	"github.com/eunmann/lineup/pkg/sqlstore"
)

// Kind names a backend.
type Kind string

const (
	Memory Kind = "memory"
	SQLite Kind = "sqlite"
)

// Kinds lists every backend.
var Kinds = []Kind{Memory, SQLite}

// ParseKind accepts a backend name in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Memory, SQLite:
		return k, nil
	default:
		return "", fmt.Errorf("unknown backend %q: must be memory or sqlite", s)
	}
}

// Options configures Open.
type Options struct {
	Kind Kind
	// SQLite configures the durable backend. Its Validator is filled from
	// Validator when unset.
	SQLite sqlstore.Options
	// BudgetFraction is the share of system RAM the memory backend may hold
	// before warning. Zero uses membudget.DefaultFraction.
	BudgetFraction float64
	// Validator is used by Revalidate. Nil stats the real filesystem.
	Validator existence.Validator
}

// Open creates the selected backend.
func Open(ctx context.Context, opts Options) (catalog.Store, error) {
	switch opts.Kind {
	case Memory:
		fraction := opts.BudgetFraction
		if fraction <= 0 {
			fraction = membudget.DefaultFraction
		}
		return memstore.New(memstore.Options{
			Validator: opts.Validator,
			Budget:    membudget.NewFromSystemRAM(fraction),
		}), nil
	case SQLite:
		sqlOpts := opts.SQLite
		if sqlOpts.Validator == nil {
			sqlOpts.Validator = opts.Validator
		}
		s, err := sqlstore.Open(ctx, sqlOpts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Kind)
	}
}
