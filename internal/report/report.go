// Package report writes a Markdown summary of a run: what was asked, what
// came back, which detail pages failed and which rows were skipped.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/pfrederiksen/pulep-events/internal/export"
	"github.com/pfrederiksen/pulep-events/internal/pipeline"
)

// maxListed caps the warning and failure lists
const maxListed = 50

// Input is what the report describes
type Input struct {
	Result  *pipeline.Result
	BaseURL string
	Files   export.Files
}

// Write renders the report to w
func Write(w io.Writer, in Input) error {
	res := in.Result
	md := markdown.NewMarkdown(w)

	md.H1("PULEP events run")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + res.RunID + "`"},
			{"Source", in.BaseURL},
			{"Started", res.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", res.Duration().Round(time.Millisecond).String()},
			{"Filters", res.Selection.String()},
		},
	})
	md.PlainText("")

	md.H2("Counts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Item", "Count"},
		Rows: [][]string{
			{"Summary rows", strconv.Itoa(len(res.Rows))},
			{"Detail records", strconv.Itoa(len(res.Details))},
			{"Failed details", strconv.Itoa(res.Failed())},
			{"Warnings", strconv.Itoa(len(res.Warnings))},
		},
	})
	md.PlainText("")

	if len(res.Details) > 0 {
		writeChart(md, res)
	}
	writeAlert(md, res)

	if in.Files.Summary != "" {
		md.H2("Files")
		md.PlainText("")
		md.BulletList("`"+in.Files.Summary+"`", "`"+in.Files.Detail+"`")
		md.PlainText("")
	}

	if res.Failed() > 0 {
		md.H2("Failed detail pages")
		md.PlainText("")
		rows := make([][]string, 0, min(res.Failed(), maxListed))
		for i, e := range res.Errors {
			if i == maxListed {
				break
			}
			rows = append(rows, []string{strconv.Itoa(e.Index), e.URL, truncate(e.Err.Error(), 80)})
		}
		md.Table(markdown.TableSet{Header: []string{"Row", "URL", "Error"}, Rows: rows})
		md.PlainText("")
	}

	if len(res.Warnings) > 0 {
		md.H2("Warnings")
		md.PlainText("")
		items := make([]string, 0, min(len(res.Warnings), maxListed+1))
		for i, warn := range res.Warnings {
			if i == maxListed {
				items = append(items, fmt.Sprintf("... and %d more", len(res.Warnings)-maxListed))
				break
			}
			items = append(items, warn.String())
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by pulep-events*")

	return md.Build()
}

func writeChart(md *markdown.Markdown, res *pipeline.Result) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Detail pages"),
		piechart.WithShowData(true),
	)
	if ok := len(res.Details) - res.Failed(); ok > 0 {
		chart.LabelAndIntValue("Fetched", uint64(ok))
	}
	if res.Failed() > 0 {
		chart.LabelAndIntValue("Failed", uint64(res.Failed()))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeAlert(md *markdown.Markdown, res *pipeline.Result) {
	switch {
	case len(res.Rows) == 0:
		md.Note("The query returned no rows.")
	case res.Failed() > 0:
		md.Warningf("%d of %d detail pages could not be fetched; their rows carry an error marker.", res.Failed(), len(res.Details))
	default:
		md.Tip("Every selected row was expanded.")
	}
	md.PlainText("")
}

// WriteFile renders the report to path, creating parent directories
func WriteFile(path string, in Input) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := Write(f, in); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
