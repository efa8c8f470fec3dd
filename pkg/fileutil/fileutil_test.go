package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.txt")

	if Exists(path) {
		t.Error("Exists should return false for missing file")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists should return true for existing file")
	}
}

func TestWriteTmpThenMove(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "nested", "report.csv")

	err := WriteTmpThenMove(outPath, func(tmpPath string) error {
		if filepath.Dir(tmpPath) != filepath.Dir(outPath) {
			t.Errorf("temp file %s not beside %s", tmpPath, outPath)
		}
		return os.WriteFile(tmpPath, []byte("GroupID\n"), 0o644)
	})
	if err != nil {
		t.Fatalf("WriteTmpThenMove: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "GroupID\n" {
		t.Errorf("content = %q", data)
	}
	if Exists(outPath + ".tmp") {
		t.Error("temp file should be gone after move")
	}
}

func TestWriteTmpThenMove_ErrorKeepsPrevious(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "catalog.db")
	if err := os.WriteFile(outPath, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("boom")
	err := WriteTmpThenMove(outPath, func(tmpPath string) error {
		_ = os.WriteFile(tmpPath, []byte("partial"), 0o644)
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	data, _ := os.ReadFile(outPath)
	if string(data) != "old" {
		t.Errorf("previous file overwritten: %q", data)
	}
	if Exists(outPath + ".tmp") {
		t.Error("temp file should be cleaned up on error")
	}
}

func TestRemoveSQLiteSidecars(t *testing.T) {
	tmpDir := t.TempDir()
	db := filepath.Join(tmpDir, "x.db")
	for _, s := range []string{"-wal", "-shm"} {
		if err := os.WriteFile(db+s, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := RemoveSQLiteSidecars(db); err != nil {
		t.Fatalf("RemoveSQLiteSidecars: %v", err)
	}
	for _, s := range []string{"-wal", "-shm", "-journal"} {
		if Exists(db + s) {
			t.Errorf("%s still present", s)
		}
	}
}
