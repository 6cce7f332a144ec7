package scraper

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/site"
)

// Page is a fetched results page
type Page struct {
	URL  *url.URL
	Body []byte
}

// Query submits the search form with the given selection and returns the
// first results page. Failures are *QueryError.
func (s *Scraper) Query(ctx context.Context, selection url.Values) (*Page, error) {
	target := s.resolve(s.layout.SearchPath())
	target.RawQuery = selection.Encode()

	logger.Info("querying events", logger.Fields{"url": target.String()})

	body, final, err := s.send(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, asQueryError(err)
	}
	if final == nil {
		final = target
	}
	return &Page{URL: final, Body: body}, nil
}

// gridForm is the form the site's jqGrid posts for one page
func gridForm(page, rows int) url.Values {
	return url.Values{
		"_search": {"false"},
		"nd":      {"0"},
		"rows":    {strconv.Itoa(rows)},
		"page":    {strconv.Itoa(page)},
		"sidx":    {""},
		"sord":    {"asc"},
	}
}

// fetchGridPage posts the grid form. The session must already carry the
// filter state from a Query.
func (s *Scraper) fetchGridPage(ctx context.Context, page int) (*site.GridPage, error) {
	target := s.resolve(s.layout.GridPath()).String()

	body, _, err := s.send(ctx, http.MethodPost, target, gridForm(page, s.gridPageSize))
	if err != nil {
		return nil, asQueryError(err)
	}

	gp, err := s.layout.ParseGrid(bytes.NewReader(body), s.base)
	if err != nil {
		what := "unreadable grid response"
		if errors.Is(err, site.ErrUnexpectedGrid) {
			what = err.Error()
		}
		return nil, &ParseError{URL: target, What: what, Err: err}
	}
	return gp, nil
}
