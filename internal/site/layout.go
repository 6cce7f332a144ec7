// Package site knows how the PULEP public reports are laid out.
//
// Everything that depends on the registry's markup (form and table
// selectors, the next-page link, the jqGrid JSON shape, the detail page
// structure) sits behind the Layout interface so the scraper itself only
// deals with URLs, requests and errors.
package site

import (
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// Errors returned when an expected structure is missing from a page
var (
	ErrNoFilters      = errors.New("no filter controls found")
	ErrNoTable        = errors.New("no results table found")
	ErrEmptyDocument  = errors.New("empty document")
	ErrUnexpectedGrid = errors.New("unexpected grid response")
)

// Layout parses the pages of one registry
type Layout interface {
	Name() string
	SearchPath() string
	GridPath() string
	ParseFilters(doc *goquery.Document) ([]event.FilterField, error)
	ParseResults(doc *goquery.Document, pageURL *url.URL) (*ResultsPage, error)
	ParseGrid(r io.Reader, base *url.URL) (*GridPage, error)
	ParseDetail(doc *goquery.Document) (*event.Record, error)
}

// ResultsPage is one parsed page of the HTML results table.
// Row indexes are positions within the page; the caller renumbers them.
type ResultsPage struct {
	Headers  []string
	Rows     []event.ResultRow
	Warnings []event.Warning
	Next     *url.URL // nil when there is no next link
}

// GridPage is one page of the jqGrid JSON endpoint
type GridPage struct {
	Total   int // number of pages
	Page    int
	Records int // number of rows across all pages
	Rows    []event.ResultRow
}

// Selectors holds every markup-dependent value. Empty fields fall back to
// DefaultSelectors.
type Selectors struct {
	SearchPath   string `yaml:"search_path"`
	GridPath     string `yaml:"grid_path"`
	DetailPath   string `yaml:"detail_path"` // "{id}" is replaced by the grid id column
	Form         string `yaml:"form"`
	TableHint    string `yaml:"table_hint"` // header text identifying the results table
	NextPage     string `yaml:"next_page"`
	DetailLink   string `yaml:"detail_link"`
	GridIDColumn string `yaml:"grid_id_column"`
}

// DefaultSelectors returns the selectors for pulepapp.mincultura.gov.co
func DefaultSelectors() Selectors {
	return Selectors{
		SearchPath:   "/InformesPublicos/Eventos",
		GridPath:     "/InformesPublicos/ObtenerEventos",
		DetailPath:   "/InformesPublicos/EventoFichap/{id}",
		Form:         "form",
		TableHint:    "evento",
		NextPage:     "a[rel=next], .pagination a.next, li.next a",
		DetailLink:   "a[href]",
		GridIDColumn: "EventoId",
	}
}

// WithDefaults fills empty selectors from DefaultSelectors
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.SearchPath, d.SearchPath)
	fill(&s.GridPath, d.GridPath)
	fill(&s.DetailPath, d.DetailPath)
	fill(&s.Form, d.Form)
	fill(&s.TableHint, d.TableHint)
	fill(&s.NextPage, d.NextPage)
	fill(&s.DetailLink, d.DetailLink)
	fill(&s.GridIDColumn, d.GridIDColumn)
	return s
}

// PULEP is the Layout of the Colombian PULEP events registry
type PULEP struct {
	sel Selectors
}

// NewPULEP creates the layout. Empty selectors use the defaults.
func NewPULEP(sel Selectors) *PULEP {
	return &PULEP{sel: sel.WithDefaults()}
}

// Name implements Layout
func (p *PULEP) Name() string { return "pulep" }

// SearchPath implements Layout
func (p *PULEP) SearchPath() string { return p.sel.SearchPath }

// GridPath implements Layout
func (p *PULEP) GridPath() string { return p.sel.GridPath }

// DetailURL builds the detail page URL for a registry event id
func (p *PULEP) DetailURL(base *url.URL, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	ref, err := url.Parse(strings.ReplaceAll(p.sel.DetailPath, "{id}", url.PathEscape(id)))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
