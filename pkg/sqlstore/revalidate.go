package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/logging"
)

type pathState struct {
	id     int64
	path   string
	exists bool
}

// Revalidate stats every stored path, then writes the flipped flags and the
// affected existing_images counts in one transaction.
func (s *Store) Revalidate(ctx context.Context) (catalog.RevalidateResult, error) {
	start := time.Now()
	release, err := s.acquire()
	if err != nil {
		return catalog.RevalidateResult{}, err
	}
	defer release()
	log := logctx.FromContext(ctx).With().Str("backend", "sqlite").Logger()

	states, err := s.pathStates(ctx)
	if err != nil {
		return catalog.RevalidateResult{}, err
	}

	res := catalog.RevalidateResult{Checked: len(states), Missing: []string{}}
	var changed []pathState
	progress := logging.NewScanProgress(log, "revalidate", int64(len(states)), 10000)
	for _, st := range states {
		if err := ctx.Err(); err != nil {
			return catalog.RevalidateResult{}, err
		}
		exists := s.validator.Exists(st.path)
		if exists != st.exists {
			st.exists = exists
			changed = append(changed, st)
		}
		if !exists {
			res.Missing = append(res.Missing, st.path)
		}
		progress.Step()
	}
	progress.Done()
	res.Changed = len(changed)

	if len(changed) > 0 {
		if err := s.writeExistence(ctx, changed); err != nil {
			return catalog.RevalidateResult{}, err
		}
	}

	logging.PhaseComplete(log, "revalidate", time.Since(start)).
		Int("checked", res.Checked).
		Int("changed", res.Changed).
		Int("missing", len(res.Missing)).
		Log("revalidation complete")
	return res, nil
}

func (s *Store) pathStates(ctx context.Context) ([]pathState, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, path, file_exists FROM images ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("read stored paths: %w", err)
	}
	defer rows.Close()

	var out []pathState
	for rows.Next() {
		var st pathState
		if err := rows.Scan(&st.id, &st.path, &st.exists); err != nil {
			return nil, fmt.Errorf("scan stored path: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) writeExistence(ctx context.Context, changed []pathState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revalidate transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE images SET file_exists = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare existence update: %w", err)
	}
	defer stmt.Close()
	for _, st := range changed {
		if _, err := stmt.ExecContext(ctx, st.exists, st.id); err != nil {
			return fmt.Errorf("update existence of %s: %w", st.path, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE groups SET
			existing_images = (SELECT COALESCE(SUM(i.file_exists), 0) FROM images i WHERE i.group_id = groups.group_id),
			updated_at = ?
		WHERE existing_images <> (SELECT COALESCE(SUM(i.file_exists), 0) FROM images i WHERE i.group_id = groups.group_id)`,
		catalog.FormatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("refresh group existence counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revalidate: %w", err)
	}
	return nil
}
