package site

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// gridResponse is the jqGrid JSON envelope
type gridResponse struct {
	Total   flexInt           `json:"total"`
	Page    flexInt           `json:"page"`
	Records flexInt           `json:"records"`
	Rows    []json.RawMessage `json:"rows"`
}

// flexInt accepts 3, "3" and null
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	*f = flexInt(n)
	return nil
}

// ParseGrid decodes one page of the ObtenerEventos endpoint. Row fields keep
// the key order of the JSON objects and the detail link is built from the
// id column.
func (p *PULEP) ParseGrid(r io.Reader, base *url.URL) (*GridPage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading grid response: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrUnexpectedGrid)
	}

	var resp gridResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedGrid, err)
	}

	page := &GridPage{
		Total:   int(resp.Total),
		Page:    int(resp.Page),
		Records: int(resp.Records),
		Rows:    make([]event.ResultRow, 0, len(resp.Rows)),
	}

	for i, raw := range resp.Rows {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return nil, fmt.Errorf("%w: row %d is not an object", ErrUnexpectedGrid, i+1)
		}
		var rec event.Record
		if err := rec.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrUnexpectedGrid, i+1, err)
		}
		row := event.ResultRow{Index: i + 1, Fields: rec}
		if base != nil {
			row.DetailURL = p.DetailURL(base, rec.Get(p.sel.GridIDColumn))
		}
		page.Rows = append(page.Rows, row)
	}

	return page, nil
}
