package sqlstore

import (
	"context"
	"fmt"
	"slices"
	"strconv"
)

// Health is the result of Check.
type Health struct {
	MissingTables  []string
	MissingIndexes []string
	// OrphanImages counts images whose group_id has no groups row.
	OrphanImages int
}

// OK reports whether the schema is complete and consistent.
func (h Health) OK() bool {
	return len(h.MissingTables) == 0 && len(h.MissingIndexes) == 0 && h.OrphanImages == 0
}

// Check inspects the schema and the images/groups referential integrity.
func (s *Store) Check(ctx context.Context) (Health, error) {
	release, err := s.acquire()
	if err != nil {
		return Health{}, err
	}
	defer release()

	present := map[string][]string{}
	rows, err := s.db.QueryContext(ctx,
		"SELECT type, name FROM sqlite_master WHERE type IN ('table', 'index')")
	if err != nil {
		return Health{}, fmt.Errorf("read schema: %w", err)
	}
	for rows.Next() {
		var typ, name string
		if err := rows.Scan(&typ, &name); err != nil {
			rows.Close()
			return Health{}, fmt.Errorf("scan schema entry: %w", err)
		}
		present[typ] = append(present[typ], name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Health{}, err
	}

	var h Health
	for _, t := range RequiredTables {
		if !slices.Contains(present["table"], t) {
			h.MissingTables = append(h.MissingTables, t)
		}
	}
	for _, idx := range RequiredIndexes {
		if !slices.Contains(present["index"], idx) {
			h.MissingIndexes = append(h.MissingIndexes, idx)
		}
	}
	if slices.Contains(h.MissingTables, "images") || slices.Contains(h.MissingTables, "groups") {
		return h, nil
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM images i
		LEFT JOIN groups g ON g.group_id = i.group_id
		WHERE g.group_id IS NULL`).Scan(&h.OrphanImages)
	if err != nil {
		return h, fmt.Errorf("count orphan images: %w", err)
	}
	return h, nil
}

// Meta is the catalog_meta record of the last load.
type Meta struct {
	LoadID        string `json:"load_id" yaml:"load_id"`
	Source        string `json:"source" yaml:"source"`
	LoadedAt      string `json:"loaded_at" yaml:"loaded_at"`
	DroppedRows   int    `json:"dropped_rows" yaml:"dropped_rows"`
	FailedRows    int    `json:"failed_rows" yaml:"failed_rows"`
	SchemaVersion int    `json:"schema_version" yaml:"schema_version"`
}

// Meta reads catalog_meta. ok is false when nothing has been loaded.
func (s *Store) Meta(ctx context.Context) (Meta, bool, error) {
	release, err := s.acquire()
	if err != nil {
		return Meta{}, false, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM catalog_meta")
	if err != nil {
		return Meta{}, false, fmt.Errorf("read catalog metadata: %w", err)
	}
	defer rows.Close()

	kv := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, false, fmt.Errorf("scan catalog metadata: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, false, err
	}
	if kv["load_id"] == "" {
		return Meta{}, false, nil
	}

	m := Meta{LoadID: kv["load_id"], Source: kv["source"], LoadedAt: kv["loaded_at"]}
	// Counters are written by Load and parse unless the table was edited by hand.
	m.DroppedRows, _ = strconv.Atoi(kv["dropped_rows"])
	m.FailedRows, _ = strconv.Atoi(kv["failed_rows"])
	m.SchemaVersion, _ = strconv.Atoi(kv["schema_version"])
	return m, true, nil
}
