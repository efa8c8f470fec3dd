// Package cli implements the lineup command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/backend"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/config"
	"github.com/eunmann/lineup/pkg/logging"
	"github.com/eunmann/lineup/pkg/migrate"
	"github.com/eunmann/lineup/pkg/query"
	"github.com/eunmann/lineup/pkg/report"
	"github.com/eunmann/lineup/pkg/sqlstore"
)

// app carries settings shared by every command.
type app struct {
	configPath string
	dbPath     string
	backend    string
	logLevel   string
	reportPath string

	cfg *config.Config
}

// NewRootCmd builds the lineup command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "lineup",
		Short: "Catalog and query groups of duplicate photos",
		Long: `lineup ingests duplicate-photo reports into a catalog, keeps one master
per group, tracks which files still exist and answers searches and statistics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional.
			_ = godotenv.Load()
			return a.loadConfig(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default lineup.toml)")
	flags.StringVar(&a.dbPath, "db", "", "catalog database path")
	flags.StringVar(&a.backend, "backend", "", "catalog backend: sqlite or memory")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.reportPath, "report", "", "report to load when the backend is memory")

	cmd.AddCommand(
		newMigrateCmd(a),
		newVerifyCmd(a),
		newExportCmd(a),
		newStatusCmd(a),
		newRevalidateCmd(a),
		newSearchCmd(a),
		newStatsCmd(a),
		newGroupsCmd(a),
		newConfigCmd(),
	)
	return cmd
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, _, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Store.Path = a.dbPath
	}
	if flags.Changed("backend") {
		cfg.Store.Backend = a.backend
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	logging.InitFromStrings(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

func (a *app) migrator() (*migrate.Migrator, error) {
	policy, err := catalog.ParseDuplicateMasterPolicy(a.cfg.Ingest.DuplicateMasters)
	if err != nil {
		return nil, err
	}
	return migrate.New(migrate.Options{
		DBPath:           a.cfg.Store.Path,
		Synchronous:      a.cfg.Store.Synchronous,
		BatchSize:        a.cfg.Store.BatchSize,
		DuplicateMasters: policy,
	}), nil
}

// openStore opens the configured backend. The sqlite backend must already
// exist; the memory backend is filled from --report.
func (a *app) openStore(ctx context.Context) (catalog.Store, error) {
	kind, err := backend.ParseKind(a.cfg.Store.Backend)
	if err != nil {
		return nil, err
	}
	store, err := backend.Open(ctx, backend.Options{
		Kind: kind,
		SQLite: sqlstore.Options{
			Path:        a.cfg.Store.Path,
			Synchronous: a.cfg.Store.Synchronous,
			BatchSize:   a.cfg.Store.BatchSize,
			Lock:        a.cfg.Store.Lock,
			NoCreate:    true,
		},
		BudgetFraction: a.cfg.Memory.BudgetFraction,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (run 'lineup migrate <report>' first)", err)
	}
	if kind != backend.Memory {
		return store, nil
	}

	if a.reportPath == "" {
		store.Close()
		return nil, errors.New("the memory backend needs --report")
	}
	if err := a.loadReport(ctx, store); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (a *app) loadReport(ctx context.Context, store catalog.Store) error {
	policy, err := catalog.ParseDuplicateMasterPolicy(a.cfg.Ingest.DuplicateMasters)
	if err != nil {
		return err
	}
	src, err := report.Open(ctx, a.reportPath)
	if err != nil {
		return err
	}
	defer src.Close()

	normalized, err := report.Normalize(ctx, src)
	if err != nil {
		return err
	}
	cat := catalog.BuildGroups(ctx, normalized.Records, catalog.BuildOptions{DuplicateMasters: policy})
	cat.Source = a.reportPath
	cat.DroppedRows = normalized.Dropped
	_, err = store.Load(ctx, cat)
	return err
}

func (a *app) queryService(store catalog.Store) (*query.Service, error) {
	policy, err := query.ParseTrivialPolicy(a.cfg.Query.TrivialGroups)
	if err != nil {
		return nil, err
	}
	return query.New(store, query.Options{
		TrivialGroups: policy,
		Stats: catalog.StatsOptions{
			LowQualityThreshold: a.cfg.Query.LowQualityThreshold,
			TopCameras:          a.cfg.Query.TopCameras,
		},
		SearchLimit: a.cfg.Query.SearchLimit,
	}), nil
}

// withStore runs fn against an opened store and query service.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, store catalog.Store, svc *query.Service) error) error {
	ctx := logctx.WithStr(cmd.Context(), "command", cmd.Name())
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := a.queryService(store)
	if err != nil {
		return err
	}
	return fn(ctx, store, svc)
}
