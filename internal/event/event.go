package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
)

// FilterOption is one selectable choice in a search form dropdown
type FilterOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FilterField groups the options of a single select control
type FilterField struct {
	Name    string         `json:"name"`
	Options []FilterOption `json:"options"`
}

// FilterSet is the ordered list of filter fields found on the search page
type FilterSet []FilterField

// Lookup returns the field with the given name
func (fs FilterSet) Lookup(name string) (FilterField, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return FilterField{}, false
}

// Names returns the field names in page order
func (fs FilterSet) Names() []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Name)
	}
	return names
}

// ResultRow is one record parsed from the summary results table
type ResultRow struct {
	Index     int    `json:"index"` // 1-based position across all pages
	Page      int    `json:"page"`
	Fields    Record `json:"fields"`
	DetailURL string `json:"detail_url"`
}

// Key returns a deterministic identifier for the row. The detail link is
// used when present since it embeds the registry's event id.
func (r ResultRow) Key() string {
	if r.DetailURL != "" {
		return GenerateID("url", r.DetailURL)
	}
	parts := make([]string, 0, r.Fields.Len())
	for _, k := range r.Fields.Keys() {
		parts = append(parts, k+"="+r.Fields.Get(k))
	}
	return GenerateID("cells", strings.Join(parts, "|"))
}

// DetailRecord is the expanded information fetched from a row's detail page.
// Err is the error marker for rows whose fetch or parse failed.
type DetailRecord struct {
	Index     int    `json:"index"`
	DetailURL string `json:"detail_url"`
	Fields    Record `json:"fields"`
	Err       string `json:"error,omitempty"`
}

// Failed reports whether the detail could not be fetched or parsed
func (d DetailRecord) Failed() bool {
	return d.Err != ""
}

// Warning is a non-fatal problem noticed while parsing or fetching
type Warning struct {
	Page    int    `json:"page,omitempty"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.Page > 0 && w.Row > 0:
		return fmt.Sprintf("page %d, row %d: %s", w.Page, w.Row, w.Message)
	case w.Page > 0:
		return fmt.Sprintf("page %d: %s", w.Page, w.Message)
	case w.Row > 0:
		return fmt.Sprintf("row %d: %s", w.Row, w.Message)
	}
	return w.Message
}

// GenerateID creates a deterministic ID from a namespace and raw text
func GenerateID(namespace, raw string) string {
	h := sha1.New()
	h.Write([]byte(namespace + "|" + raw))
	return fmt.Sprintf("%x", h.Sum(nil))
}
