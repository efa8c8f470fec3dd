package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/eunmann/lineup/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lineup.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}
	want := config.Default()
	if *cfg != want {
		t.Fatalf("defaults changed: got %+v want %+v", *cfg, want)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[store]
backend = "Memory"
synchronous = "full"

[query]
trivial_groups = "hide"
top_cameras = 3
`)
	cfg, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Store.Backend != "memory" || cfg.Store.Synchronous != "FULL" {
		t.Fatalf("store not normalized: %+v", cfg.Store)
	}
	if cfg.Query.TrivialGroups != "hide" || cfg.Query.TopCameras != 3 || cfg.Query.SearchLimit != 100 {
		t.Fatalf("unexpected query section: %+v", cfg.Query)
	}
	if cfg.Store.Path != ".lineup_cache.db" {
		t.Fatalf("unset keys should keep defaults, path = %q", cfg.Store.Path)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[store]\npath = \"from-file.db\"\n")
	t.Setenv(config.EnvDatabase, "from-env.db")
	t.Setenv(config.EnvLogLevel, "DEBUG")
	t.Setenv(config.EnvBatchSize, "64")

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Path != "from-env.db" || cfg.Logging.Level != "debug" || cfg.Store.BatchSize != 64 {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"backend", "[store]\nbackend = \"postgres\"\n", "store.backend"},
		{"synchronous", "[store]\nsynchronous = \"sometimes\"\n", "store.synchronous"},
		{"batch", "[store]\nbatch_size = 0\n", "store.batch_size"},
		{"trivial", "[query]\ntrivial_groups = \"prune\"\n", "query.trivial_groups"},
		{"duplicates", "[ingest]\nduplicate_masters = \"keep-all\"\n", "ingest.duplicate_masters"},
		{"fraction", "[memory]\nbudget_fraction = 2.0\n", "memory.budget_fraction"},
		{"format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"unknown key", "[store]\ncolour = \"blue\"\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := config.Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSampleMatchesDefaults(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.Sample()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg != config.Default() {
		t.Fatalf("sample config drifted from defaults:\n got %+v\nwant %+v", cfg, config.Default())
	}
}
