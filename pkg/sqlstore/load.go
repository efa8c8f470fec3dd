package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/logging"
)

// Load replaces the stored catalog in one transaction. Rows are written in
// multi-row batches; a batch that violates a constraint is retried row by
// row so one bad row cannot abort the load. Any other error rolls back and
// leaves the previous catalog in place.
func (s *Store) Load(ctx context.Context, cat *catalog.Catalog) (catalog.LoadResult, error) {
	start := time.Now()
	release, err := s.acquire()
	if err != nil {
		return catalog.LoadResult{}, err
	}
	defer release()

	if err := catalog.Validate(cat); err != nil {
		return catalog.LoadResult{}, err
	}

	loadID := uuid.NewString()
	log := logctx.FromContext(ctx).With().Str("load_id", loadID).Str("backend", "sqlite").Logger()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.LoadResult{}, fmt.Errorf("begin load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM images",
		"DELETE FROM groups",
		"DELETE FROM sqlite_sequence WHERE name = 'images'",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return catalog.LoadResult{}, fmt.Errorf("clear catalog: %w", err)
		}
	}

	w, err := newImageWriter(ctx, tx, s.batchSize, log)
	if err != nil {
		return catalog.LoadResult{}, err
	}
	for i := range cat.Groups {
		for j := range cat.Groups[i].Records {
			if err := w.add(&cat.Groups[i].Records[j]); err != nil {
				w.close()
				return catalog.LoadResult{}, err
			}
		}
	}
	if err := w.flush(); err != nil {
		w.close()
		return catalog.LoadResult{}, err
	}
	w.close()

	now := catalog.FormatTimestamp(time.Now())
	if err := rebuildGroups(ctx, tx, now); err != nil {
		return catalog.LoadResult{}, err
	}
	warnings, err := repairMasters(ctx, tx, now)
	if err != nil {
		return catalog.LoadResult{}, err
	}
	for _, warn := range warnings {
		log.Warn().Str("group_id", warn.GroupID).Str("kind", warn.Kind).Str("detail", warn.Detail).Msg("consistency warning")
	}

	var groups, images int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total_images), 0) FROM groups").Scan(&groups, &images); err != nil {
		return catalog.LoadResult{}, fmt.Errorf("count loaded catalog: %w", err)
	}

	meta := map[string]string{
		"load_id":        loadID,
		"source":         cat.Source,
		"loaded_at":      now,
		"dropped_rows":   strconv.Itoa(cat.DroppedRows),
		"failed_rows":    strconv.Itoa(w.failed),
		"schema_version": strconv.Itoa(SchemaVersion),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO catalog_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return catalog.LoadResult{}, fmt.Errorf("write catalog metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return catalog.LoadResult{}, fmt.Errorf("commit load: %w", err)
	}

	logging.PhaseComplete(log, "load", time.Since(start)).
		Str("source", cat.Source).
		Int("groups", groups).
		Int("images", images).
		Int("dropped_rows", cat.DroppedRows).
		Int("failed_rows", w.failed).
		Log("catalog loaded")

	return catalog.LoadResult{
		LoadID:     loadID,
		Groups:     groups,
		Images:     images,
		FailedRows: w.failed,
		Warnings:   warnings,
	}, nil
}

// imageWriter buffers records into multi-row INSERTs with a single-row
// statement for the remainder and for per-row fallback.
type imageWriter struct {
	ctx       context.Context
	tx        *sql.Tx
	log       zerolog.Logger
	batchSize int
	multiStmt *sql.Stmt
	oneStmt   *sql.Stmt
	pending   []*catalog.ImageRecord
	args      []any
	written   int
	failed    int
}

func newImageWriter(ctx context.Context, tx *sql.Tx, batchSize int, log zerolog.Logger) (*imageWriter, error) {
	w := &imageWriter{
		ctx:       ctx,
		tx:        tx,
		log:       log,
		batchSize: batchSize,
		pending:   make([]*catalog.ImageRecord, 0, batchSize),
		args:      make([]any, 0, batchSize*len(imageColumns)),
	}

	var err error
	if w.oneStmt, err = tx.PrepareContext(ctx, buildInsertSQL(1)); err != nil {
		return nil, fmt.Errorf("prepare insert statement: %w", err)
	}
	if batchSize > 1 {
		if w.multiStmt, err = tx.PrepareContext(ctx, buildInsertSQL(batchSize)); err != nil {
			w.oneStmt.Close()
			return nil, fmt.Errorf("prepare multi-row insert statement: %w", err)
		}
	}
	return w, nil
}

// buildInsertSQL builds an INSERT with n value tuples.
func buildInsertSQL(n int) string {
	oneRow := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(imageColumns)), ", ") + ")"
	rows := make([]string, n)
	for i := range rows {
		rows[i] = oneRow
	}
	return fmt.Sprintf("INSERT INTO images (%s) VALUES %s", selectImageColumns, strings.Join(rows, ", "))
}

func (w *imageWriter) add(rec *catalog.ImageRecord) error {
	w.pending = append(w.pending, rec)
	if w.multiStmt != nil && len(w.pending) == w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *imageWriter) flush() error {
	defer func() { w.pending = w.pending[:0] }()

	if w.multiStmt != nil && len(w.pending) == w.batchSize {
		w.args = w.args[:0]
		for _, rec := range w.pending {
			w.args = appendArgs(w.args, rec)
		}
		// A failed statement is undone by SQLite; the transaction stays usable.
		_, err := w.multiStmt.ExecContext(w.ctx, w.args...)
		if err == nil {
			w.written += len(w.pending)
			return nil
		}
		if !isConstraint(err) {
			return fmt.Errorf("insert image batch: %w", err)
		}
		w.log.Debug().Err(err).Int("rows", len(w.pending)).Msg("batch insert failed, retrying row by row")
	}

	for _, rec := range w.pending {
		if err := w.insertOne(rec); err != nil {
			return err
		}
	}
	return nil
}

func (w *imageWriter) insertOne(rec *catalog.ImageRecord) error {
	w.args = appendArgs(w.args[:0], rec)
	_, err := w.oneStmt.ExecContext(w.ctx, w.args...)
	switch {
	case err == nil:
		w.written++
	case isConstraint(err):
		w.failed++
		w.log.Warn().
			Err(err).
			Str("group_id", rec.GroupID).
			Str("path", rec.Path).
			Msg("image row rejected")
	default:
		return fmt.Errorf("insert image row: %w", err)
	}
	return nil
}

func (w *imageWriter) close() {
	if w.multiStmt != nil {
		w.multiStmt.Close()
	}
	w.oneStmt.Close()
}

// rebuildGroups derives the groups roll-up from images.
func rebuildGroups(ctx context.Context, tx *sql.Tx, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO groups (group_id, algorithm, total_images, master_count, existing_images, created_at, updated_at)
		SELECT
			i.group_id,
			(SELECT a.algorithm FROM images a
				WHERE a.group_id = i.group_id AND a.algorithm <> ''
				ORDER BY a.id LIMIT 1),
			COUNT(*),
			SUM(i.is_master),
			SUM(i.file_exists),
			?, ?
		FROM images i
		GROUP BY i.group_id`, now, now)
	if err != nil {
		return fmt.Errorf("rebuild groups: %w", err)
	}
	return nil
}

// repairMasters promotes the first record of any group left without a
// master after rejected rows.
func repairMasters(ctx context.Context, tx *sql.Tx, now string) ([]catalog.ConsistencyWarning, error) {
	rows, err := tx.QueryContext(ctx, "SELECT group_id FROM groups WHERE master_count = 0 ORDER BY group_id")
	if err != nil {
		return nil, fmt.Errorf("find groups without master: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups without master: %w", err)
	}

	var warnings []catalog.ConsistencyWarning
	for _, id := range ids {
		var path string
		if err := tx.QueryRowContext(ctx, `
			UPDATE images SET is_master = 1
			WHERE id = (SELECT MIN(id) FROM images WHERE group_id = ?)
			RETURNING path`, id).Scan(&path); err != nil {
			return nil, fmt.Errorf("promote master for group %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE groups SET master_count = 1, updated_at = ? WHERE group_id = ?", now, id); err != nil {
			return nil, fmt.Errorf("update group %s: %w", id, err)
		}
		warnings = append(warnings, catalog.ConsistencyWarning{
			GroupID: id,
			Kind:    catalog.WarnMasterRepaired,
			Detail:  "master row rejected, promoted " + path,
		})
	}
	return warnings, nil
}
