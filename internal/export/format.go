package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/pfrederiksen/pulep-events/internal/logger"
)

// Format is a spreadsheet encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// File name stems; the extension follows the format
const (
	SummaryFileStem = "pulep_eventos_resumen"
	DetailFileStem  = "pulep_eventos_detalle"
)

// MaxCellLength is the most characters Excel keeps in one cell
const MaxCellLength = 32767

// TruncatedMarker ends a cell that was cut to MaxCellLength
const TruncatedMarker = " [...]"

const (
	maxSheetName     = 31
	defaultSheetName = "datos"
	maxColumnWidth   = 60
)

// ParseFormat accepts "xlsx" and "csv", case-insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported format %q (want xlsx or csv)", s)
}

// FileName returns stem.ext for the format
func (f Format) FileName(stem string) string {
	return stem + "." + string(f)
}

// Encode renders t in the given format
func Encode(t *Table, f Format) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return XLSX(t)
	case FormatCSV:
		return CSV(t)
	}
	return nil, fmt.Errorf("unsupported format %q", f)
}

// SheetName makes name acceptable to Excel: forbidden characters replaced,
// at most 31 characters, "datos" when empty
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if utf8.RuneCountInString(name) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	if name == "" {
		return defaultSheetName
	}
	return name
}

// XLSX encodes t as a single-sheet workbook with a bold header row
func XLSX(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(t.Name)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("creating stream writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	for i, width := range columnWidths(t) {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return nil, fmt.Errorf("setting column width: %w", err)
		}
	}

	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			fitted, cut := fitCell(v)
			if cut {
				logger.Warn("cell truncated to the xlsx limit", logger.Fields{
					"sheet":  sheet,
					"row":    r + 1,
					"column": columnName(t, i),
					"length": utf8.RuneCountInString(v),
				})
				logger.IncrCounter("export.truncated_cells")
			}
			cells[i] = fitted
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", r+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flushing sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// fitCell cuts v to MaxCellLength characters, ending it with
// TruncatedMarker, and reports whether it did
func fitCell(v string) (string, bool) {
	if utf8.RuneCountInString(v) <= MaxCellLength {
		return v, false
	}
	keep := MaxCellLength - utf8.RuneCountInString(TruncatedMarker)
	return string([]rune(v)[:keep]) + TruncatedMarker, true
}

func columnName(t *Table, i int) string {
	if i < len(t.Headers) {
		return t.Headers[i]
	}
	return strconv.Itoa(i + 1)
}

// columnWidths sizes columns to their longest cell, capped
func columnWidths(t *Table) []float64 {
	widths := make([]float64, len(t.Headers))
	measure := func(i int, s string) {
		if i >= len(widths) {
			return
		}
		w := float64(utf8.RuneCountInString(s)) + 2
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		if w > widths[i] {
			widths[i] = w
		}
	}
	for i, h := range t.Headers {
		measure(i, h)
	}
	for _, row := range t.Rows {
		for i, v := range row {
			measure(i, v)
		}
	}
	return widths
}

// utf8BOM makes Excel open the CSV as UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV encodes t with a UTF-8 byte order mark and a header line
func CSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("writing rows: %w", err)
	}
	return buf.Bytes(), nil
}

// Files are the paths written by WriteFiles
type Files struct {
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

// WriteFiles encodes both tables and writes them into dir
func WriteFiles(dir string, f Format, summary, detail *Table) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("creating output directory: %w", err)
	}

	out := Files{
		Summary: filepath.Join(dir, f.FileName(SummaryFileStem)),
		Detail:  filepath.Join(dir, f.FileName(DetailFileStem)),
	}
	for _, item := range []struct {
		path  string
		table *Table
	}{
		{out.Summary, summary},
		{out.Detail, detail},
	} {
		data, err := Encode(item.table, f)
		if err != nil {
			return Files{}, fmt.Errorf("encoding %s: %w", item.table.Name, err)
		}
		if err := os.WriteFile(item.path, data, 0o644); err != nil {
			return Files{}, fmt.Errorf("writing %s: %w", item.path, err)
		}
	}
	return out, nil
}
