// Package export turns the rows and detail records of a run into flat
// tables and encodes them as spreadsheets.
//
// Column order is the order in which field names were first seen, so the
// same input always produces the same headers. Missing fields are empty
// cells.
package export

import (
	"strconv"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// Column and sheet names of the exported files
const (
	SummarySheet    = "eventos_resumen"
	DetailSheet     = "eventos_detalle"
	DetailURLColumn = "detalle_url"
	IndexColumn     = "indice"
	ErrorColumn     = "error"
)

// Table is a named grid of string cells
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// SummaryTable has one row per result row: every field seen in any row,
// then the detail link
func SummaryTable(rows []event.ResultRow) *Table {
	cols := newColumns(DetailURLColumn)
	for _, r := range rows {
		cols.addAll(r.Fields.Keys())
	}
	headers := make([]string, 0, len(cols.headers)+1)
	headers = append(headers, cols.headers...)
	headers = append(headers, DetailURLColumn)

	t := &Table{Name: SummarySheet, Headers: headers, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		cells := make([]string, len(headers))
		for i, k := range cols.keys {
			cells[i] = r.Fields.Get(k)
		}
		cells[len(headers)-1] = r.DetailURL
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// DetailTable has one row per detail record: index, link, every field seen
// in any record, then the error marker
func DetailTable(details []event.DetailRecord) *Table {
	cols := newColumns(IndexColumn, DetailURLColumn, ErrorColumn)
	for _, d := range details {
		cols.addAll(d.Fields.Keys())
	}

	headers := make([]string, 0, len(cols.headers)+3)
	headers = append(headers, IndexColumn, DetailURLColumn)
	headers = append(headers, cols.headers...)
	headers = append(headers, ErrorColumn)

	t := &Table{Name: DetailSheet, Headers: headers, Rows: make([][]string, 0, len(details))}
	for _, d := range details {
		cells := make([]string, 0, len(headers))
		cells = append(cells, strconv.Itoa(d.Index), d.DetailURL)
		for _, k := range cols.keys {
			cells = append(cells, d.Fields.Get(k))
		}
		cells = append(cells, d.Err)
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// columns collects field names in first-seen order. A field whose name is
// already taken by a reserved column or an earlier header is exported under
// name_2, name_3, ...
type columns struct {
	keys    []string // field names as found in the records
	headers []string // exported header for each key
	seen    map[string]bool
	taken   map[string]bool
}

func newColumns(reserved ...string) *columns {
	c := &columns{seen: make(map[string]bool), taken: make(map[string]bool)}
	for _, r := range reserved {
		c.taken[r] = true
	}
	return c
}

func (c *columns) addAll(names []string) {
	for _, n := range names {
		if c.seen[n] {
			continue
		}
		c.seen[n] = true

		header := n
		for i := 2; c.taken[header]; i++ {
			header = n + "_" + strconv.Itoa(i)
		}
		c.taken[header] = true
		c.keys = append(c.keys, n)
		c.headers = append(c.headers, header)
	}
}
