// Package fileutil provides file helpers for the durable catalog file and report exports.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// sqliteSidecars are the files SQLite keeps beside a database file.
var sqliteSidecars = []string{"-wal", "-shm", "-journal"}

// Exists returns true if the path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteTmpThenMove writes to a temporary file then atomically moves it to the final path.
// The temporary file lives in the same directory as outPath so the rename never crosses
// file systems. The writeFunc receives the temporary path and should write the complete file.
func WriteTmpThenMove(outPath string, writeFunc func(tmpPath string) error) error {
	outDir := filepath.Dir(outPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath) // stale leftover from an interrupted run

	if err := writeFunc(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := syncFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp to final: %w", err)
	}

	return nil
}

// RemoveSQLiteSidecars removes the -wal, -shm and -journal files of a database path.
// Missing sidecars are not an error.
func RemoveSQLiteSidecars(dbPath string) error {
	var errs []error
	for _, suffix := range sqliteSidecars {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncFile opens, syncs, and closes a file.
func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	err = f.Sync()
	f.Close()
	return err
}
