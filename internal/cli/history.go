package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/pulep-events/internal/archive"
	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/export"
	"github.com/pfrederiksen/pulep-events/internal/storage"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Work with runs kept by scrape --archive",
		Long: `History reads the run archive in the data directory. Runs are only
archived when scrape is called with --archive (or archive: true in the config
file). A run id may be shortened to any unique prefix.`,
	}

	cmd.AddCommand(newHistoryListCmd(root))
	cmd.AddCommand(newHistoryExportCmd(root))
	cmd.AddCommand(newHistoryDiffCmd(root))

	return cmd
}

// withArchive opens the archive for the duration of fn
func withArchive(cmd *cobra.Command, root *rootOptions, fn func(ctx context.Context, a *archive.Archive) error) error {
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening data directory: %w", err)
	}
	a, err := archive.Open(store.Dir())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}

func newHistoryListCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := OutputFormat(strings.ToLower(format))
			if f != FormatText && f != FormatJSON {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", format)
			}
			return withArchive(cmd, root, func(ctx context.Context, a *archive.Archive) error {
				runs, err := a.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				return WriteRuns(cmd.OutOrStdout(), runs, f)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 = all)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}

func newHistoryExportCmd(root *rootOptions) *cobra.Command {
	var (
		outDir string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write the spreadsheets of an archived run again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withArchive(cmd, root, func(ctx context.Context, a *archive.Archive) error {
				run, err := a.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				files, err := export.WriteFiles(outDir, f,
					export.SummaryTable(run.Rows),
					export.DetailTable(run.Details))
				if err != nil {
					return fmt.Errorf("exporting run %s: %w", run.ID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s)\n", run.ID, run.Filters)
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n  %s\n", files.Summary, files.Detail)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "Directory for the spreadsheets")
	cmd.Flags().StringVar(&format, "format", string(export.FormatXLSX), "Spreadsheet format: xlsx or csv")

	return cmd
}

func newHistoryDiffCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <older-run-id> <newer-run-id>",
		Short: "Show events added, removed or changed between two archived runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, root, func(ctx context.Context, a *archive.Archive) error {
				older, err := a.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				newer, err := a.GetRun(ctx, args[1])
				if err != nil {
					return err
				}
				diff := event.Diff(older.Rows, newer.Rows)
				return WriteDiff(cmd.OutOrStdout(), older, newer, diff)
			})
		},
	}
	return cmd
}
