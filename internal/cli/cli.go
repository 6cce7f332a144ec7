package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/pulep-events/internal/config"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/scraper"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitPartial means the spreadsheets were written but some detail pages failed
	ExitPartial = 2
)

// exitCodeError carries a non-zero exit code without an error message
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootOptions holds the persistent flags
type rootOptions struct {
	configFile string
	verbose    bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pulep-events",
		Short: "Export events from the PULEP public events registry",
		Long: `A CLI tool to query the PULEP public events registry (Colombia's
Ministry of Culture), follow each event's detail page, and export a summary
and a detail spreadsheet.

Examples:
  # List the available filters
  pulep-events filters

  # Export 2025 events in Bogotá
  pulep-events scrape --filter anio=2025 --filter departamento="Bogotá, D.C."

  # Summary only, as CSV
  pulep-events scrape --filters "anio=2025" --no-details --format csv`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "",
		"Configuration file (default: "+config.DefaultConfigFile+" in the current directory, then "+config.XDGConfigFile()+")")

	cmd.AddCommand(newFiltersCmd(opts))
	cmd.AddCommand(newScrapeCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig applies the file and environment layers and sets up logging.
// Flags are applied by each command before validation.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if opts.verbose {
		cfg.Verbose = true
	}

	logger.SetDefault(logger.New(logger.ForVerbosity(cfg.Verbose), cmd.ErrOrStderr()))
	if cfg.ConfigFile != "" {
		logger.Debug("loaded config file", logger.Fields{"path": cfg.ConfigFile})
	}
	return cfg, nil
}

// Run executes the CLI with args and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return exitCode(stderr, cmd.ExecuteContext(ctx))
}

// exitCode prints err and maps it to an exit code
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exit *exitCodeError
	if errors.As(err, &exit) {
		return exit.code
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "Error: interrupted")
		return ExitError
	}

	fmt.Fprintf(w, "Error: %v\n", err)

	var parseErr *scraper.ParseError
	if errors.As(err, &parseErr) {
		fmt.Fprintln(w, "Hint: the registry's pages no longer look as expected. Override the selectors")
		fmt.Fprintln(w, "under 'layout:' in your config file, or try --mode grid / --mode html.")
	}
	if errors.Is(err, scraper.ErrRobotsDisallowed) {
		fmt.Fprintln(w, "Hint: robots.txt disallows this path; disable respect_robots to override.")
	}
	return ExitError
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
