// Package config loads lineup settings from a TOML file and the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "lineup.toml"

// Environment variables applied after the file.
const (
	EnvDatabase  = "LINEUP_DATABASE"
	EnvBackend   = "LINEUP_BACKEND"
	EnvLogLevel  = "LINEUP_LOG_LEVEL"
	EnvBatchSize = "LINEUP_BATCH_SIZE"
)

// Store selects and tunes the catalog backend.
type Store struct {
	Backend     string `toml:"backend"`
	Path        string `toml:"path"`
	Synchronous string `toml:"synchronous"`
	BatchSize   int    `toml:"batch_size"`
	Lock        bool   `toml:"lock"`
}

// Ingest controls report ingestion.
type Ingest struct {
	DuplicateMasters string `toml:"duplicate_masters"`
}

// Query tunes searches, statistics and group navigation.
type Query struct {
	LowQualityThreshold float64 `toml:"low_quality_threshold"`
	TopCameras          int     `toml:"top_cameras"`
	SearchLimit         int     `toml:"search_limit"`
	TrivialGroups       string  `toml:"trivial_groups"`
}

// Memory bounds the in-memory backend.
type Memory struct {
	// BudgetFraction is the share of system RAM a snapshot may use before a
	// warning is logged. Default: 0.25
	BudgetFraction float64 `toml:"budget_fraction"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for lineup.
type Config struct {
	Store   Store   `toml:"store"`
	Ingest  Ingest  `toml:"ingest"`
	Query   Query   `toml:"query"`
	Memory  Memory  `toml:"memory"`
	Logging Logging `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: Store{
			Backend:     "sqlite",
			Path:        ".lineup_cache.db",
			Synchronous: "NORMAL",
			BatchSize:   256,
			Lock:        true,
		},
		Ingest: Ingest{DuplicateMasters: "keep-first"},
		Query: Query{
			LowQualityThreshold: 5.0,
			TopCameras:          10,
			SearchLimit:         100,
			TrivialGroups:       "keep",
		},
		Memory:  Memory{BudgetFraction: 0.25},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Sample returns a commented config file with the default values.
func Sample() string {
	return sampleConfig
}

// Load reads path (DefaultPath when empty), applies environment overrides
// and validates the result. A missing file is not an error; exists reports
// whether one was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	exists := true
	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, false, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvDatabase); ok && v != "" {
		c.Store.Path = v
	}
	if v, ok := os.LookupEnv(EnvBackend); ok && v != "" {
		c.Store.Backend = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvBatchSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBatchSize, err)
		}
		c.Store.BatchSize = n
	}
	return nil
}

func (c *Config) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	c.Store.Synchronous = strings.ToUpper(strings.TrimSpace(c.Store.Synchronous))
	c.Ingest.DuplicateMasters = strings.ToLower(strings.TrimSpace(c.Ingest.DuplicateMasters))
	c.Query.TrivialGroups = strings.ToLower(strings.TrimSpace(c.Query.TrivialGroups))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}
