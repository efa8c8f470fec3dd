package migrate

import (
	"context"
	"fmt"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/fileutil"
	"github.com/eunmann/lineup/pkg/sqlstore"
)

// VerifyResult is the outcome of Verify.
type VerifyResult struct {
	Health  sqlstore.Health
	Summary catalog.OverallSummary
	Indexes int
	// Meta describes the last load, nil when catalog_meta is empty.
	Meta *sqlstore.Meta
}

// Valid reports whether every required table and index exists. Orphan
// images are reported but do not make a database invalid.
func (v VerifyResult) Valid() bool {
	return len(v.Health.MissingTables) == 0 && len(v.Health.MissingIndexes) == 0
}

// Verify checks the database schema and referential consistency.
func (m *Migrator) Verify(ctx context.Context) (VerifyResult, error) {
	log := logctx.FromContext(ctx).With().Str("db_path", m.opts.DBPath).Logger()
	store, err := m.openExisting(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	defer store.Close()

	var res VerifyResult
	if res.Health, err = store.Check(ctx); err != nil {
		return res, err
	}
	res.Indexes = len(sqlstore.RequiredIndexes) - len(res.Health.MissingIndexes)
	if len(res.Health.MissingTables) > 0 {
		log.Error().Strs("missing_tables", res.Health.MissingTables).Msg("missing database tables")
		return res, nil
	}
	if len(res.Health.MissingIndexes) > 0 {
		log.Error().Strs("missing_indexes", res.Health.MissingIndexes).Msg("missing database indexes")
	}

	if res.Summary, err = store.OverallSummary(ctx); err != nil {
		return res, err
	}
	if meta, ok, err := store.Meta(ctx); err != nil {
		return res, err
	} else if ok {
		res.Meta = &meta
	}
	if res.Health.OrphanImages > 0 {
		log.Warn().Int("orphan_images", res.Health.OrphanImages).Str("kind", catalog.WarnOrphanImages).
			Msg("found images with no corresponding group")
	}
	log.Info().
		Int("groups", res.Summary.TotalGroups).
		Int("images", res.Summary.TotalImages).
		Int("indexes", res.Indexes).
		Bool("valid", res.Valid()).
		Msg("database verification complete")
	return res, nil
}

// Status describes the database for the status command.
type Status struct {
	DatabasePath    string                  `json:"database_path" yaml:"database_path"`
	Exists          bool                    `json:"database_exists" yaml:"database_exists"`
	Valid           bool                    `json:"database_valid" yaml:"database_valid"`
	Summary         *catalog.OverallSummary `json:"stats,omitempty" yaml:"stats,omitempty"`
	Meta            *sqlstore.Meta          `json:"last_load,omitempty" yaml:"last_load,omitempty"`
	Recommendations []string                `json:"recommendations" yaml:"recommendations"`
}

// Status inspects the database and suggests what to do next. Problems with
// the database are reported as recommendations, not errors.
func (m *Migrator) Status(ctx context.Context) Status {
	st := Status{
		DatabasePath:    m.opts.DBPath,
		Exists:          fileutil.Exists(m.opts.DBPath),
		Recommendations: []string{},
	}
	if !st.Exists {
		st.Recommendations = append(st.Recommendations, "No database found - run migration to create one")
		return st
	}

	res, err := m.Verify(ctx)
	if err != nil {
		st.Recommendations = append(st.Recommendations, fmt.Sprintf("Database error: %v", err))
		return st
	}
	st.Valid = res.Valid()
	if !st.Valid {
		st.Recommendations = append(st.Recommendations, "Database exists but appears corrupted")
		return st
	}
	st.Summary = &res.Summary
	st.Meta = res.Meta

	if res.Health.OrphanImages > 0 {
		st.Recommendations = append(st.Recommendations,
			fmt.Sprintf("%d images reference missing groups - re-run migration with --force", res.Health.OrphanImages))
	}
	if res.Summary.MissingImages > 0 {
		st.Recommendations = append(st.Recommendations,
			fmt.Sprintf("%d image files are missing - run revalidate", res.Summary.MissingImages))
	}
	if len(st.Recommendations) == 0 {
		st.Recommendations = append(st.Recommendations, "Database is ready for use")
	}
	return st
}
