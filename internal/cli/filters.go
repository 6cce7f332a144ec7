package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/pulep-events/internal/config"
	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/scraper"
	"github.com/pfrederiksen/pulep-events/internal/storage"
)

type filtersOptions struct {
	format  string
	refresh bool
}

func newFiltersCmd(root *rootOptions) *cobra.Command {
	opts := &filtersOptions{}

	cmd := &cobra.Command{
		Use:   "filters",
		Short: "List the filters offered by the search form",
		Long: `List every dropdown of the registry's search form with its options.
Option labels or values can be passed to 'scrape --filter'.

Results are cached in the data directory for filter_cache_ttl (24h by
default); --refresh reads the form again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFilters(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "Ignore the filter cache")

	return cmd
}

func runFilters(cmd *cobra.Command, root *rootOptions, opts *filtersOptions) error {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}

	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	sc, err := scraper.New(cfg)
	if err != nil {
		return err
	}

	fields, err := discoverFilters(cmd.Context(), cfg, sc, opts.refresh)
	if err != nil {
		return err
	}

	return WriteFilters(cmd.OutOrStdout(), fields, format)
}

// discoverFilters returns the search form's filters, from the cache when it
// is fresh. Cache problems are logged and never fail the command.
func discoverFilters(ctx context.Context, cfg *config.Config, sc *scraper.Scraper, refresh bool) (event.FilterSet, error) {
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		logger.Warn("filter cache unavailable", logger.Fields{"dir": cfg.DataDir, "error": err})
	}

	sel := cfg.Layout.WithDefaults()
	src := storage.FilterSource{BaseURL: cfg.BaseURL, SearchPath: sel.SearchPath, Form: sel.Form}

	if store != nil && !refresh {
		snap, err := store.LoadFilters(src, cfg.FilterCacheTTL)
		switch {
		case err != nil:
			logger.Warn("ignoring filter cache", logger.Fields{"error": err})
		case snap != nil:
			logger.Debug("using cached filters", logger.Fields{"fetched_at": snap.FetchedAt, "fields": len(snap.Fields)})
			return snap.Fields, nil
		}
	}

	fields, err := sc.DiscoverFilters(ctx)
	if err != nil {
		return nil, err
	}

	if store != nil && cfg.FilterCacheTTL > 0 {
		if err := store.SaveFilters(src, fields); err != nil {
			logger.Warn("could not cache filters", logger.Fields{"error": err})
		}
	}
	return fields, nil
}
