// Package sqlstore is the durable catalog backend, an embedded SQLite
// database holding an images table and a groups roll-up kept in sync with it.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/existence"
	"github.com/eunmann/lineup/pkg/logging"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is recorded in catalog_meta on every load.
const SchemaVersion = 1

// DefaultBatchSize is the number of rows per multi-row INSERT.
const DefaultBatchSize = 256

// RequiredTables and RequiredIndexes are checked by Check.
var (
	RequiredTables  = []string{"groups", "images", "catalog_meta"}
	RequiredIndexes = []string{
		"idx_group_id", "idx_is_master", "idx_quality_score", "idx_similarity_score",
		"idx_file_type", "idx_camera_make", "idx_camera_model", "idx_file_exists",
		"idx_size_bytes", "idx_dimensions",
	}
)

// driverName registers go-sqlite3 with the lineup_contains function so
// searches fold case exactly like the in-memory backend.
const driverName = "sqlite3_lineup"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lineup_contains", containsFold, true)
		},
	})
}

func containsFold(haystack, needle string) int64 {
	if catalog.ContainsFold(haystack, needle) {
		return 1
	}
	return 0
}

// ErrLocked indicates another process holds the store's lock file.
var ErrLocked = errors.New("database is locked by another process")

// Options configures Open.
type Options struct {
	// Path is the database file.
	Path string
	// Synchronous is the SQLite synchronous pragma: OFF, NORMAL or FULL.
	Synchronous string
	// BatchSize is the number of rows per multi-row INSERT.
	BatchSize int
	// Lock takes an exclusive lock file beside the database for the store's lifetime.
	Lock bool
	// NoCreate opens an existing database without creating it or its schema.
	NoCreate bool
	// Validator is used by Revalidate. Nil uses existence.NewOS().
	Validator existence.Validator
}

// Validate checks option values.
func (o *Options) Validate() error {
	if o.Path == "" {
		return errors.New("database path is required")
	}
	switch strings.ToUpper(o.Synchronous) {
	case "", "OFF", "NORMAL", "FULL":
	default:
		return fmt.Errorf("invalid synchronous value %q: must be OFF, NORMAL, or FULL", o.Synchronous)
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("batch size must be non-negative, got %d", o.BatchSize)
	}
	return nil
}

// Store is a catalog.Store backed by SQLite. All access goes through a
// single connection and is serialized by mu.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	lock      *flock.Flock
	path      string
	batchSize int
	validator existence.Validator
	log       zerolog.Logger
	closed    bool
}

var (
	_ catalog.Store         = (*Store)(nil)
	_ catalog.Searcher      = (*Store)(nil)
	_ catalog.StatsProvider = (*Store)(nil)
	_ catalog.MissingLister = (*Store)(nil)
)

// Open opens or creates the database. Failures to open, lock or prepare the
// schema are returned as *catalog.StoreUnavailableError.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sqlstore options: %w", err)
	}
	if opts.Synchronous == "" {
		opts.Synchronous = "NORMAL"
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Validator == nil {
		opts.Validator = existence.NewOS()
	}
	unavailable := func(err error) error {
		return &catalog.StoreUnavailableError{Path: opts.Path, Err: err}
	}

	var lock *flock.Flock
	if opts.Lock {
		lock = flock.New(opts.Path + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, unavailable(fmt.Errorf("acquire lock: %w", err))
		}
		if !ok {
			return nil, unavailable(ErrLocked)
		}
	}

	db, err := openDB(ctx, opts)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, unavailable(err)
	}

	s := &Store{
		db:        db,
		lock:      lock,
		path:      opts.Path,
		batchSize: opts.BatchSize,
		validator: opts.Validator,
		log:       logging.WithPhase("sqlstore"),
	}
	s.log.Debug().
		Str("db_path", opts.Path).
		Str("synchronous", opts.Synchronous).
		Bool("locked", lock != nil).
		Msg("opened catalog database")
	return s, nil
}

func openDB(ctx context.Context, opts Options) (*sql.DB, error) {
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_txlock=immediate",
		"_synchronous=" + strings.ToUpper(opts.Synchronous),
	}
	if opts.NoCreate {
		params = append(params, "mode=rw")
	} else {
		params = append(params, "_journal_mode=WAL")
	}
	dsn := "file:" + opts.Path + "?" + strings.Join(params, "&")

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA temp_store=MEMORY"); err != nil {
		db.Close()
		return nil, fmt.Errorf("execute pragma: %w", err)
	}
	if !opts.NoCreate {
		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the lock. Calling it again is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.db.Close()
	if s.lock != nil {
		err = errors.Join(err, s.lock.Unlock())
	}
	if err != nil {
		return fmt.Errorf("close catalog database: %w", err)
	}
	return nil
}

// acquire locks the store for one operation.
func (s *Store) acquire() (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, catalog.ErrClosed
	}
	return s.mu.Unlock, nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
