package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pfrederiksen/pulep-events/internal/archive"
	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/export"
	"github.com/pfrederiksen/pulep-events/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// rowPreviewFields is how many cells of a row are shown in diff output
const rowPreviewFields = 3

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// WriteFilters writes the discovered filters in the given format
func WriteFilters(w io.Writer, fields event.FilterSet, format OutputFormat) error {
	switch format {
	case FormatJSON:
		if fields == nil {
			fields = event.FilterSet{}
		}
		return writeJSON(w, fields)
	case FormatText:
		for i, field := range fields {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s (%d options):\n", field.Name, len(field.Options))
			for _, opt := range field.Options {
				if opt.Value == "" || opt.Value == opt.Label {
					fmt.Fprintf(w, "  %s\n", opt.Label)
					continue
				}
				fmt.Fprintf(w, "  %s [%s]\n", opt.Label, opt.Value)
			}
		}
		fmt.Fprintf(w, "\nUse as: scrape --filter %s=<label or value>\n", firstFieldName(fields))
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func firstFieldName(fields event.FilterSet) string {
	if len(fields) == 0 {
		return "campo"
	}
	return fields[0].Name
}

// WriteRunSummary reports a finished scrape
func WriteRunSummary(w io.Writer, res *pipeline.Result, files export.Files, reportPath string, verbose bool) error {
	fmt.Fprintf(w, "Run %s finished in %s\n", res.RunID, res.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Filters:        %s\n", res.Selection.String())
	fmt.Fprintf(w, "Summary rows:   %d\n", len(res.Rows))
	if res.Failed() > 0 {
		fmt.Fprintf(w, "Detail records: %d (%d failed)\n", len(res.Details), res.Failed())
	} else {
		fmt.Fprintf(w, "Detail records: %d\n", len(res.Details))
	}
	fmt.Fprintf(w, "Warnings:       %d\n", len(res.Warnings))

	fmt.Fprintln(w, "\nFiles:")
	fmt.Fprintf(w, "  %s\n", files.Summary)
	fmt.Fprintf(w, "  %s\n", files.Detail)
	if reportPath != "" {
		fmt.Fprintf(w, "  %s\n", reportPath)
	}

	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "\nNo events matched the selected filters.")
	}

	if verbose && len(res.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}

	if res.Failed() > 0 {
		fmt.Fprintf(w, "\n%d detail pages could not be fetched; see the %q column of the detail sheet.\n",
			res.Failed(), export.ErrorColumn)
		if verbose {
			for _, e := range res.Errors {
				fmt.Fprintf(w, "  row %d: %v\n", e.Index, e.Err)
			}
		}
	}
	return nil
}

// WriteRuns lists archived runs
func WriteRuns(w io.Writer, runs []archive.RunInfo, format OutputFormat) error {
	switch format {
	case FormatJSON:
		if runs == nil {
			runs = []archive.RunInfo{}
		}
		return writeJSON(w, runs)
	case FormatText:
		if len(runs) == 0 {
			fmt.Fprintln(w, "No archived runs.")
			return nil
		}
		for _, run := range runs {
			fmt.Fprintf(w, "%s  %s  rows=%d details=%d failed=%d  %s\n",
				shortID(run.ID),
				run.StartedAt.Local().Format("2006-01-02 15:04"),
				run.RowCount, run.DetailCount, run.FailedCount,
				run.Filters)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteDiff reports the differences between two archived runs
func WriteDiff(w io.Writer, older, newer *archive.Run, diff *event.DiffResult) error {
	fmt.Fprintf(w, "Comparing %s (%s) with %s (%s)\n",
		shortID(older.ID), older.StartedAt.Local().Format("2006-01-02 15:04"),
		shortID(newer.ID), newer.StartedAt.Local().Format("2006-01-02 15:04"))

	if diff.Empty() {
		fmt.Fprintln(w, "\nNo differences.")
		return nil
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(w, "\nAdded (%d):\n", len(diff.Added))
		for _, row := range diff.Added {
			fmt.Fprintf(w, "  + %s\n", rowPreview(row))
		}
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(w, "\nRemoved (%d):\n", len(diff.Removed))
		for _, row := range diff.Removed {
			fmt.Fprintf(w, "  - %s\n", rowPreview(row))
		}
	}
	if len(diff.Changed) > 0 {
		fmt.Fprintf(w, "\nChanged (%d):\n", len(diff.Changed))
		for _, c := range diff.Changed {
			fmt.Fprintf(w, "  ~ row %d %s: %q -> %q\n", c.Index, c.Field, c.OldValue, c.NewValue)
		}
	}
	return nil
}

func rowPreview(row event.ResultRow) string {
	keys := row.Fields.Keys()
	parts := make([]string, 0, rowPreviewFields)
	for _, k := range keys[:min(len(keys), rowPreviewFields)] {
		if v := row.Fields.Get(k); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return row.DetailURL
	}
	return strings.Join(parts, " | ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
