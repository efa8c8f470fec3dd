package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/humanfmt"
)

func newMigrateCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "migrate <report>",
		Short: "Load a report (CSV, CSV.gz, Parquet or s3://) into the catalog database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.migrator()
			if err != nil {
				return err
			}
			ctx := logctx.WithStr(cmd.Context(), "command", "migrate")
			res, err := m.Migrate(ctx, args[0], force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printLine(out, "Migrated %s groups and %s images to %s in %s",
				humanfmt.Count(int64(res.Groups)), humanfmt.Count(int64(res.Images)),
				a.cfg.Store.Path, humanfmt.Duration(res.Elapsed))
			if res.DroppedRows > 0 {
				printLine(out, "Dropped %d malformed rows", res.DroppedRows)
			}
			if res.FailedRows > 0 {
				printLine(out, "Rejected %d rows while writing", res.FailedRows)
			}
			for _, w := range res.Warnings {
				printLine(out, "Warning: %s", w)
			}
			if res.MissingImages > 0 {
				printLine(out, "Found %d missing image files", res.MissingImages)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing database")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the catalog database schema and consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.migrator()
			if err != nil {
				return err
			}
			res, err := m.Verify(logctx.WithStr(cmd.Context(), "command", "verify"))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printLine(out, "Database contains %d groups and %d images", res.Summary.TotalGroups, res.Summary.TotalImages)
			printLine(out, "Found %d of %d indexes", res.Indexes, res.Indexes+len(res.Health.MissingIndexes))
			if res.Health.OrphanImages > 0 {
				printLine(out, "Warning: %d orphaned images (no corresponding group)", res.Health.OrphanImages)
			}
			if !res.Valid() {
				return errors.New("database verification failed")
			}
			printLine(out, "Database verification completed successfully")
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <output>",
		Short: "Write the catalog back out as a report (.csv or .parquet, optionally .gz)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.migrator()
			if err != nil {
				return err
			}
			n, err := m.Export(logctx.WithStr(cmd.Context(), "command", "export"), args[0])
			if err != nil {
				return err
			}
			printLine(cmd.OutOrStdout(), "Exported %s records to %s", humanfmt.Count(int64(n)), args[0])
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog database status and recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			m, err := a.migrator()
			if err != nil {
				return err
			}
			st := m.Status(logctx.WithStr(cmd.Context(), "command", "status"))

			out := cmd.OutOrStdout()
			if f == formatYAML {
				return writeYAML(out, st)
			}
			rows := [][]string{
				{"Database", st.DatabasePath},
				{"Exists", strconv.FormatBool(st.Exists)},
				{"Valid", strconv.FormatBool(st.Valid)},
			}
			if s := st.Summary; s != nil {
				rows = append(rows,
					[]string{"Total groups", strconv.Itoa(s.TotalGroups)},
					[]string{"Total images", strconv.Itoa(s.TotalImages)},
					[]string{"Missing images", strconv.Itoa(s.MissingImages)},
				)
			}
			if meta := st.Meta; meta != nil {
				rows = append(rows,
					[]string{"Source", meta.Source},
					[]string{"Loaded at", meta.LoadedAt},
					[]string{"Dropped rows", strconv.Itoa(meta.DroppedRows)},
				)
			}
			printLine(out, "%s", renderTable([]string{"Field", "Value"}, rows, nil))
			printLine(out, "\nRecommendations:")
			for _, r := range st.Recommendations {
				printLine(out, "  - %s", r)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	return cmd
}
