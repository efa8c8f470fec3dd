package existence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOSExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	v := NewOS()
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"regular file", file, true},
		{"missing file", filepath.Join(dir, "missing.jpg"), false},
		{"directory", dir, false},
		{"empty path", "", false},
		{"nul byte", "a\x00b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Exists(tt.path); got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestOSExistsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jpg")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	link := filepath.Join(dir, "link.jpg")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	v := NewOS()
	if !v.Exists(link) {
		t.Error("symlink to regular file should exist")
	}
	if err := os.Remove(target); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if v.Exists(link) {
		t.Error("dangling symlink should not exist")
	}
}

func TestStaticAndFunc(t *testing.T) {
	s := Static{"/a": true}
	if !s.Exists("/a") || s.Exists("/b") {
		t.Error("Static lookup mismatch")
	}

	calls := 0
	f := Func(func(string) bool { calls++; return true })
	if !f.Exists("/x") || calls != 1 {
		t.Errorf("Func: calls = %d", calls)
	}
}
