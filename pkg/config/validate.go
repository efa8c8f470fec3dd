package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateQuery(); err != nil {
		return err
	}
	switch c.Ingest.DuplicateMasters {
	case "keep-first", "keep-highest-quality":
	default:
		return fmt.Errorf("ingest.duplicate_masters must be keep-first or keep-highest-quality, got %q", c.Ingest.DuplicateMasters)
	}
	if c.Memory.BudgetFraction <= 0 || c.Memory.BudgetFraction > 1 {
		return errors.New("memory.budget_fraction must be in (0, 1]")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("store.backend must be sqlite or memory, got %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		return errors.New("store.path must be set")
	}
	switch c.Store.Synchronous {
	case "OFF", "NORMAL", "FULL":
	default:
		return fmt.Errorf("store.synchronous must be OFF, NORMAL or FULL, got %q", c.Store.Synchronous)
	}
	if c.Store.BatchSize < 1 {
		return errors.New("store.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateQuery() error {
	if c.Query.TopCameras < 1 {
		return errors.New("query.top_cameras must be positive")
	}
	if c.Query.SearchLimit < 1 {
		return errors.New("query.search_limit must be positive")
	}
	switch c.Query.TrivialGroups {
	case "keep", "hide":
	default:
		return fmt.Errorf("query.trivial_groups must be keep or hide, got %q", c.Query.TrivialGroups)
	}
	return nil
}
