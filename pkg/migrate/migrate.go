// Package migrate converts between flat reports and the durable catalog
// database, and checks the database's health.
package migrate

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/existence"
	"github.com/eunmann/lineup/pkg/fileutil"
	"github.com/eunmann/lineup/pkg/logging"
	"github.com/eunmann/lineup/pkg/report"
	"github.com/eunmann/lineup/pkg/sqlstore"
)

// ErrStoreExists is returned by Migrate when the database exists and force is false.
var ErrStoreExists = errors.New("catalog database already exists")

// Options configures a Migrator.
type Options struct {
	// DBPath is the durable catalog file.
	DBPath           string
	Synchronous      string
	BatchSize        int
	DuplicateMasters catalog.DuplicateMasterPolicy
	// Validator computes FileExists during migration. Nil stats the filesystem.
	Validator existence.Validator
}

// Migrator runs migrations against one database path.
type Migrator struct {
	opts Options
}

// New creates a Migrator.
func New(opts Options) *Migrator {
	if opts.Validator == nil {
		opts.Validator = existence.NewOS()
	}
	return &Migrator{opts: opts}
}

// Result describes a completed migration.
type Result struct {
	Source        string
	LoadID        string
	Groups        int
	Images        int
	MissingImages int
	DroppedRows   int
	FailedRows    int
	RowErrors     []report.RowError
	Warnings      []catalog.ConsistencyWarning
	Elapsed       time.Duration
}

// Migrate ingests the report at location into a fresh database. The new
// database is built beside the old one and renamed over it, so a failed
// migration leaves any existing database untouched.
func (m *Migrator) Migrate(ctx context.Context, location string, force bool) (Result, error) {
	start := time.Now()
	dbPath := m.opts.DBPath
	if fileutil.Exists(dbPath) && !force {
		return Result{}, fmt.Errorf("%w: %s (use --force to overwrite)", ErrStoreExists, dbPath)
	}

	unlock, err := lockDB(dbPath)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	log := logctx.FromContext(ctx).With().Str("source", location).Str("db_path", dbPath).Logger()
	ctx = logctx.WithLogger(ctx, log)
	log.Info().Msg("starting migration")

	src, err := report.Open(ctx, location)
	if err != nil {
		return Result{}, err
	}
	normalized, err := report.Normalize(ctx, src)
	closeErr := src.Close()
	if err != nil {
		return Result{}, err
	}
	if closeErr != nil {
		return Result{}, fmt.Errorf("close report: %w", closeErr)
	}

	cat := catalog.BuildGroups(ctx, normalized.Records, catalog.BuildOptions{
		DuplicateMasters: m.opts.DuplicateMasters,
		Validator:        m.opts.Validator,
	})
	cat.Source = location
	cat.DroppedRows = normalized.Dropped

	var loaded catalog.LoadResult
	err = fileutil.WriteTmpThenMove(dbPath, func(tmpPath string) error {
		_ = fileutil.RemoveSQLiteSidecars(tmpPath)
		store, err := sqlstore.Open(ctx, sqlstore.Options{
			Path:        tmpPath,
			Synchronous: m.opts.Synchronous,
			BatchSize:   m.opts.BatchSize,
			Validator:   m.opts.Validator,
		})
		if err != nil {
			return err
		}
		loaded, err = store.Load(ctx, cat)
		if err != nil {
			store.Close()
			return err
		}
		if err := store.Close(); err != nil {
			return err
		}
		if err := fileutil.RemoveSQLiteSidecars(tmpPath); err != nil {
			return fmt.Errorf("remove temp database sidecars: %w", err)
		}
		if err := fileutil.RemoveSQLiteSidecars(dbPath); err != nil {
			return fmt.Errorf("remove stale database sidecars: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("migrate %s: %w", location, err)
	}

	summary := cat.Summary()
	res := Result{
		Source:        location,
		LoadID:        loaded.LoadID,
		Groups:        loaded.Groups,
		Images:        loaded.Images,
		MissingImages: summary.MissingImages,
		DroppedRows:   normalized.Dropped,
		FailedRows:    loaded.FailedRows,
		RowErrors:     normalized.RowErrors,
		Warnings:      append(cat.Warnings, loaded.Warnings...),
		Elapsed:       time.Since(start),
	}

	logging.PhaseComplete(log, "migrate", res.Elapsed).
		Str("load_id", res.LoadID).
		Int("groups", res.Groups).
		Int("images", res.Images).
		Int("dropped_rows", res.DroppedRows).
		Int("failed_rows", res.FailedRows).
		Log("migration complete")
	if res.MissingImages > 0 {
		log.Warn().Int("missing_images", res.MissingImages).Msg("found missing image files")
	}
	return res, nil
}

// lockDB takes the same lock file sqlstore uses so a migration never
// replaces a database another process has open.
func lockDB(dbPath string) (func(), error) {
	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, &catalog.StoreUnavailableError{Path: dbPath, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	if !ok {
		return nil, &catalog.StoreUnavailableError{Path: dbPath, Err: sqlstore.ErrLocked}
	}
	return func() { _ = lock.Unlock() }, nil
}

// openExisting opens the database read-side without creating it.
func (m *Migrator) openExisting(ctx context.Context) (*sqlstore.Store, error) {
	if !fileutil.Exists(m.opts.DBPath) {
		return nil, &catalog.StoreUnavailableError{Path: m.opts.DBPath, Err: os.ErrNotExist}
	}
	return sqlstore.Open(ctx, sqlstore.Options{
		Path:        m.opts.DBPath,
		Synchronous: m.opts.Synchronous,
		NoCreate:    true,
		Validator:   m.opts.Validator,
	})
}

// Export writes every stored record to outPath in canonical order: groups by
// id, then master first and the rest by quality. The format follows the
// extension (.csv, .parquet, optionally .gz). Returns the number of rows.
func (m *Migrator) Export(ctx context.Context, outPath string) (int, error) {
	start := time.Now()
	store, err := m.openExisting(ctx)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	ids, err := store.ListGroupIDs(ctx)
	if err != nil {
		return 0, err
	}
	log := logctx.FromContext(ctx).With().Str("output", outPath).Logger()
	if len(ids) == 0 {
		log.Warn().Msg("no data found in database to export")
	}

	format, gz := report.DetectFormat(outPath)
	rows := 0
	err = fileutil.WriteTmpThenMove(outPath, func(tmpPath string) error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()

		var out io.Writer = f
		var zw *gzip.Writer
		if gz {
			zw = gzip.NewWriter(f)
			out = zw
		}
		w := report.NewWriter(out, format)
		for _, id := range ids {
			g, ok, err := store.GetGroup(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for i := range g.Records {
				if err := w.Write(&g.Records[i]); err != nil {
					return fmt.Errorf("write row: %w", err)
				}
				rows++
			}
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("flush export: %w", err)
		}
		if zw != nil {
			if err := zw.Close(); err != nil {
				return fmt.Errorf("close gzip stream: %w", err)
			}
		}
		return f.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("export to %s: %w", outPath, err)
	}

	logging.PhaseComplete(log, "export", time.Since(start)).
		Str("format", format.String()).
		Int("rows", rows).
		Log("export complete")
	return rows, nil
}
