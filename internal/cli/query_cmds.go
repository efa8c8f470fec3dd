package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/config"
	"github.com/eunmann/lineup/pkg/humanfmt"
	"github.com/eunmann/lineup/pkg/query"
)

func newRevalidateCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "revalidate",
		Short: "Re-check that every cataloged file still exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store catalog.Store, _ *query.Service) error {
				res, err := store.Revalidate(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printLine(out, "Checked %s files, %s changed, %s missing",
					humanfmt.Count(int64(res.Checked)), humanfmt.Count(int64(res.Changed)),
					humanfmt.Count(int64(len(res.Missing))))
				if list {
					for _, p := range res.Missing {
						printLine(out, "%s", p)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print every missing path")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		field  string
		limit  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find images whose metadata contains text (case-insensitive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, _ catalog.Store, svc *query.Service) error {
				records, err := svc.Search(ctx, args[0], field, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if f == formatYAML {
					return writeYAML(out, searchRows(records))
				}
				rows := make([][]string, 0, len(records))
				for _, r := range records {
					rows = append(rows, []string{
						r.GroupID, r.File, strconv.FormatBool(r.IsMaster), r.Path, formatScore(r.QualityScore),
					})
				}
				printLine(out, "%s", renderTable(
					[]string{"Group", "File", "Master", "Path", "Quality"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				printLine(out, "%d matches", len(records))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "search one field (e.g. CameraMake or camera_make); default all text fields")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default from config)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	return cmd
}

type searchRow struct {
	GroupID string   `yaml:"group_id"`
	File    string   `yaml:"file"`
	Path    string   `yaml:"path"`
	Master  bool     `yaml:"master"`
	Exists  bool     `yaml:"exists"`
	Quality *float64 `yaml:"quality,omitempty"`
}

func searchRows(records []catalog.ImageRecord) []searchRow {
	rows := make([]searchRow, len(records))
	for i, r := range records {
		rows[i] = searchRow{
			GroupID: r.GroupID, File: r.File, Path: r.Path,
			Master: r.IsMaster, Exists: r.FileExists, Quality: r.QualityScore,
		}
	}
	return rows
}

func newStatsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show quality, camera, file type and size statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, _ catalog.Store, svc *query.Service) error {
				st, err := svc.AdvancedStatistics(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if f == formatYAML {
					return writeYAML(out, st)
				}

				if q := st.Quality; q != nil {
					printLine(out, "Quality scores")
					printLine(out, "%s", renderTable(
						[]string{"Count", "Avg", "Min", "Max", "Low quality"},
						[][]string{{
							strconv.Itoa(q.Count), strconv.FormatFloat(q.Avg, 'f', 2, 64),
							strconv.FormatFloat(q.Min, 'f', -1, 64), strconv.FormatFloat(q.Max, 'f', -1, 64),
							strconv.Itoa(q.LowQualityCount),
						}},
						[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight}))
				}
				if len(st.Cameras) > 0 {
					rows := make([][]string, len(st.Cameras))
					for i, c := range st.Cameras {
						rows[i] = []string{c.Make, c.Model, strconv.Itoa(c.Count)}
					}
					printLine(out, "Top cameras")
					printLine(out, "%s", renderTable([]string{"Make", "Model", "Images"}, rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight}))
				}
				if len(st.FileTypes) > 0 {
					rows := make([][]string, len(st.FileTypes))
					for i, ft := range st.FileTypes {
						rows[i] = []string{ft.FileType, strconv.Itoa(ft.Count)}
					}
					printLine(out, "File types")
					printLine(out, "%s", renderTable([]string{"Type", "Images"}, rows,
						[]columnAlignment{alignLeft, alignRight}))
				}
				if s := st.Size; s != nil {
					printLine(out, "File sizes")
					printLine(out, "%s", renderTable(
						[]string{"Count", "Avg", "Min", "Max", "Total"},
						[][]string{{
							strconv.Itoa(s.Count), humanfmt.Bytes(int64(s.Avg)),
							humanfmt.Bytes(s.Min), humanfmt.Bytes(s.Max), humanfmt.Bytes(s.Sum),
						}},
						[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight}))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	return cmd
}

func newGroupsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "groups [group-id]",
		Short: "List groups, or show one group's images and the next group to review",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, _ catalog.Store, svc *query.Service) error {
				if len(args) == 1 {
					return showGroup(ctx, cmd, svc, args[0], f)
				}
				sums, err := svc.GroupSummaries(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if f == formatYAML {
					return writeYAML(out, sums)
				}
				rows := make([][]string, len(sums))
				for i, s := range sums {
					rows[i] = []string{
						s.GroupID, s.Algorithm, strconv.Itoa(s.TotalImages),
						strconv.Itoa(s.ExistingImages), strconv.Itoa(s.MissingImages),
						strings.Join(s.MatchReasons, "; "),
					}
				}
				printLine(out, "%s", renderTable(
					[]string{"Group", "Algorithm", "Images", "Existing", "Missing", "Match reasons"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
				printLine(out, "%d groups", len(sums))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	return cmd
}

func showGroup(ctx context.Context, cmd *cobra.Command, svc *query.Service, id string, f outputFormat) error {
	g, err := svc.Group(ctx, id)
	if err != nil {
		return err
	}
	next, hasNext, err := svc.NextGroup(ctx, id)
	if err != nil {
		return err
	}
	trivial, err := svc.IsTrivial(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f == formatYAML {
		return writeYAML(out, struct {
			GroupID string      `yaml:"group_id"`
			Trivial bool        `yaml:"trivial"`
			Next    string      `yaml:"next,omitempty"`
			Images  []searchRow `yaml:"images"`
		}{g.ID, trivial, next, searchRows(g.Records)})
	}

	rows := make([][]string, len(g.Records))
	for i, r := range g.Records {
		rows[i] = []string{
			r.File, strconv.FormatBool(r.IsMaster), strconv.FormatBool(r.FileExists),
			formatScore(r.QualityScore), r.Path,
		}
	}
	printLine(out, "%s", renderTable([]string{"File", "Master", "Exists", "Quality", "Path"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
	if trivial {
		printLine(out, "Group %s has at most one existing image", g.ID)
	}
	if hasNext {
		printLine(out, "Next group: %s", next)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Print a config file with every default value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(config.Sample()))
			return err
		},
	})
	return cmd
}

func formatScore(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
