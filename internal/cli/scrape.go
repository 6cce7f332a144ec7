package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/pulep-events/internal/archive"
	"github.com/pfrederiksen/pulep-events/internal/config"
	"github.com/pfrederiksen/pulep-events/internal/export"
	"github.com/pfrederiksen/pulep-events/internal/filter"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/pipeline"
	"github.com/pfrederiksen/pulep-events/internal/report"
	"github.com/pfrederiksen/pulep-events/internal/scraper"
	"github.com/pfrederiksen/pulep-events/internal/storage"
)

// progressEvery controls how often detail progress is printed in verbose mode
const progressEvery = 25

type scrapeOptions struct {
	filters        []string
	manual         string
	noDetails      bool
	maxDetails     int
	concurrency    int
	mode           string
	format         string
	outDir         string
	report         string
	archive        bool
	skipValidation bool
	timeout        time.Duration
	delay          time.Duration
	retries        int
	maxPages       int
}

func newScrapeCmd(root *rootOptions) *cobra.Command {
	opts := &scrapeOptions{}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Query the registry and export summary and detail spreadsheets",
		Long: `Scrape runs a search with the given filters, reads every results page,
fetches each event's detail page and writes two spreadsheets:
pulep_eventos_resumen and pulep_eventos_detalle.

Filters are given as campo=valor. The value may be the option's value or its
visible label, compared without case or accents. Repeat --filter to select
several values or fields; --filters takes a comma separated list.

Exit status is 0 on success, 1 on error, and 2 when the spreadsheets were
written but some detail pages could not be fetched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, root, opts)
		},
	}

	defaults := config.NewConfig()

	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "Filter as campo=valor (repeatable)")
	cmd.Flags().StringVar(&opts.manual, "filters", "", `Comma separated filters, e.g. "anio=2025,departamento=11"`)
	cmd.Flags().BoolVar(&opts.skipValidation, "skip-validation", false, "Send filters as given without checking them against the form")

	cmd.Flags().BoolVar(&opts.noDetails, "no-details", false, "Only export the summary table")
	cmd.Flags().IntVar(&opts.maxDetails, "max-details", defaults.MaxDetails, "Fetch at most N detail pages (0 = all)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", defaults.Concurrency, "Concurrent detail requests")

	cmd.Flags().StringVar(&opts.mode, "mode", string(defaults.Mode), "Results source: auto, html or grid")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", defaults.MaxPages, "Maximum results pages to read (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaults.Timeout, "HTTP request timeout")
	cmd.Flags().DurationVar(&opts.delay, "delay", defaults.RequestDelay, "Minimum delay between requests")
	cmd.Flags().IntVar(&opts.retries, "retries", defaults.Retries, "Retries on network errors, 429 and 5xx")

	cmd.Flags().StringVar(&opts.format, "format", defaults.Format, "Spreadsheet format: xlsx or csv")
	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", defaults.OutDir, "Directory for the spreadsheets")
	cmd.Flags().StringVar(&opts.report, "report", "", "Also write a Markdown run report to this file")
	cmd.Flags().BoolVar(&opts.archive, "archive", false, "Keep the run in the history archive")

	return cmd
}

// apply copies the flags the user set onto cfg
func (o *scrapeOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("no-details") {
		cfg.IncludeDetails = !o.noDetails
	}
	if flags.Changed("max-details") {
		cfg.MaxDetails = o.maxDetails
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if flags.Changed("mode") {
		cfg.Mode = config.Mode(o.mode)
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages = o.maxPages
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("delay") {
		cfg.RequestDelay = o.delay
	}
	if flags.Changed("retries") {
		cfg.Retries = o.retries
	}
	if flags.Changed("format") {
		cfg.Format = o.format
	}
	if flags.Changed("out-dir") {
		cfg.OutDir = o.outDir
	}
	if flags.Changed("archive") {
		cfg.Archive = o.archive
	}
}

// selection merges --filter and --filters
func (o *scrapeOptions) selection() (*filter.Selection, error) {
	sel, err := filter.ParseAssignments(o.filters)
	if err != nil {
		return nil, err
	}
	manual, err := filter.ParseManual(o.manual)
	if err != nil {
		return nil, err
	}
	for _, f := range manual.Fields() {
		for _, v := range manual.Get(f) {
			sel.Add(f, v)
		}
	}
	return sel, nil
}

func runScrape(cmd *cobra.Command, root *rootOptions, opts *scrapeOptions) error {
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	sel, err := opts.selection()
	if err != nil {
		return err
	}

	sc, err := scraper.New(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if !sel.IsEmpty() && !opts.skipValidation {
		fields, err := discoverFilters(ctx, cfg, sc, false)
		if err != nil {
			return err
		}
		if sel, err = filter.Validate(sel, fields); err != nil {
			return err
		}
	}

	req := pipeline.Request{
		Selection:      sel,
		IncludeDetails: cfg.IncludeDetails,
		MaxDetails:     cfg.MaxDetails,
		Concurrency:    cfg.Concurrency,
	}
	if cfg.Verbose {
		stderr := cmd.ErrOrStderr()
		req.Progress = func(done, total int) {
			if done%progressEvery == 0 || done == total {
				fmt.Fprintf(stderr, "Fetched %d/%d detail pages\n", done, total)
			}
		}
	}

	res, err := pipeline.Run(ctx, sc, req)
	if err != nil {
		return err
	}

	files, err := export.WriteFiles(cfg.OutDir, format,
		export.SummaryTable(res.Rows),
		export.DetailTable(res.Details))
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	if opts.report != "" {
		in := report.Input{Result: res, BaseURL: cfg.BaseURL, Files: files}
		if err := report.WriteFile(opts.report, in); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}

	if cfg.Archive {
		archiveRun(cmd, cfg, res)
	}

	if err := WriteRunSummary(cmd.OutOrStdout(), res, files, opts.report, cfg.Verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if logger.Default().Enabled(logger.LevelDebug) {
		logger.DefaultMetrics().WriteSummary(cmd.ErrOrStderr())
	}

	if res.Failed() > 0 {
		return &exitCodeError{code: ExitPartial}
	}
	return nil
}

// archiveRun stores res in the history archive. The spreadsheets are
// already written, so failures are only logged.
func archiveRun(cmd *cobra.Command, cfg *config.Config, res *pipeline.Result) {
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		logger.Error("archive unavailable", logger.Fields{"dir": cfg.DataDir}, err)
		return
	}
	a, err := archive.Open(store.Dir())
	if err != nil {
		logger.Error("archive unavailable", logger.Fields{"dir": store.Dir()}, err)
		return
	}
	defer a.Close()

	if err := a.SaveRun(cmd.Context(), res, cfg.BaseURL); err != nil {
		logger.Error("archiving run failed", logger.Fields{"run_id": res.RunID}, err)
		return
	}
	logger.Info("run archived", logger.Fields{"run_id": res.RunID, "path": a.Path()})
}
