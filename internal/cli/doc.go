// Package cli implements the command-line interface for pulep-events.
//
// The cli package provides the Cobra-based commands: filters lists the
// search form's options, scrape runs a query and writes the summary and
// detail spreadsheets, and history works with runs kept in the archive.
// It coordinates config, scraper, pipeline, export, report, storage and
// archive; none of those packages print to the terminal themselves.
package cli
