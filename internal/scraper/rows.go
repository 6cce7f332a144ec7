package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/pulep-events/internal/config"
	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/site"
)

// Rows queries the registry and yields every result row across all pages,
// in page order then document order, with a continuous 1-based Index.
//
// The sequence is lazy and single-use: ranging over it again issues the
// query again. An error is yielded once and ends the sequence. Non-fatal
// problems (skipped rows, the grid fallback, the page limit) go to warn,
// which may be nil.
func (s *Scraper) Rows(ctx context.Context, selection url.Values, warn func(event.Warning)) iter.Seq2[event.ResultRow, error] {
	if warn == nil {
		warn = func(event.Warning) {}
	}
	switch s.mode {
	case config.ModeHTML:
		return s.htmlRows(ctx, selection, warn)
	case config.ModeGrid:
		return s.gridRows(ctx, selection, warn)
	default:
		return s.autoRows(ctx, selection, warn)
	}
}

// autoRows reads the grid and falls back to the HTML table when the grid's
// first page cannot be read. A failure after rows were yielded is returned.
func (s *Scraper) autoRows(ctx context.Context, selection url.Values, warn func(event.Warning)) iter.Seq2[event.ResultRow, error] {
	return func(yield func(event.ResultRow, error) bool) {
		started := false
		var gridErr error

		for row, err := range s.gridRows(ctx, selection, warn) {
			if err != nil {
				if started || ctx.Err() != nil {
					yield(event.ResultRow{}, err)
					return
				}
				gridErr = err
				break
			}
			started = true
			if !yield(row, nil) {
				return
			}
		}
		if gridErr == nil {
			return
		}

		logger.Warn("grid endpoint failed, reading the HTML table instead", logger.Fields{"error": gridErr})
		warn(event.Warning{Message: fmt.Sprintf("grid endpoint unavailable (%v); read the HTML table instead", gridErr)})

		for row, err := range s.htmlRows(ctx, selection, warn) {
			if !yield(row, err) {
				return
			}
		}
	}
}

func (s *Scraper) gridRows(ctx context.Context, selection url.Values, warn func(event.Warning)) iter.Seq2[event.ResultRow, error] {
	return func(yield func(event.ResultRow, error) bool) {
		// the GET stores the filters in the server session
		if _, err := s.Query(ctx, selection); err != nil {
			yield(event.ResultRow{}, err)
			return
		}

		index := 0
		for pageNo := 1; ; pageNo++ {
			gp, err := s.fetchGridPage(ctx, pageNo)
			if err != nil {
				yield(event.ResultRow{}, err)
				return
			}
			logger.Debug("grid page", logger.Fields{"page": pageNo, "total": gp.Total, "rows": len(gp.Rows)})

			for _, row := range gp.Rows {
				index++
				row.Index = index
				row.Page = pageNo
				if !yield(row, nil) {
					return
				}
			}

			if pageNo >= gp.Total || len(gp.Rows) == 0 {
				return
			}
			if s.maxPages > 0 && pageNo >= s.maxPages {
				warn(event.Warning{Page: pageNo, Message: fmt.Sprintf("stopped after %d pages of %d", pageNo, gp.Total)})
				return
			}
		}
	}
}

func (s *Scraper) htmlRows(ctx context.Context, selection url.Values, warn func(event.Warning)) iter.Seq2[event.ResultRow, error] {
	return func(yield func(event.ResultRow, error) bool) {
		first, err := s.Query(ctx, selection)
		if err != nil {
			yield(event.ResultRow{}, err)
			return
		}

		visited := map[string]bool{pageKey(first.URL): true}
		body, pageURL := first.Body, first.URL
		index := 0

		for pageNo := 1; ; pageNo++ {
			page, err := s.parseResultsPage(body, pageURL)
			if errors.Is(err, site.ErrNoTable) && pageNo > 1 {
				logger.Debug("no results table on page, stopping", logger.Fields{"page": pageNo, "url": pageURL.String()})
				return
			}
			if err != nil {
				yield(event.ResultRow{}, err)
				return
			}

			for _, w := range page.Warnings {
				w.Page = pageNo
				logger.Warn("skipped row", logger.Fields{"page": pageNo, "row": w.Row, "reason": w.Message})
				warn(w)
			}

			for _, row := range page.Rows {
				index++
				row.Index = index
				row.Page = pageNo
				if !yield(row, nil) {
					return
				}
			}

			if page.Next == nil {
				return
			}
			key := pageKey(page.Next)
			if visited[key] {
				logger.Debug("next link already visited, stopping", logger.Fields{"url": page.Next.String()})
				return
			}
			if s.maxPages > 0 && pageNo >= s.maxPages {
				warn(event.Warning{Page: pageNo, Message: fmt.Sprintf("stopped after %d pages; more pages were linked", pageNo)})
				return
			}
			visited[key] = true

			var final *url.URL
			body, final, err = s.send(ctx, http.MethodGet, page.Next.String(), nil)
			if err != nil {
				yield(event.ResultRow{}, err)
				return
			}
			pageURL = page.Next
			if final != nil {
				visited[pageKey(final)] = true
				pageURL = final
			}
		}
	}
}

// parseResultsPage wraps layout failures as *ParseError. site.ErrNoTable
// stays reachable through errors.Is.
func (s *Scraper) parseResultsPage(body []byte, pageURL *url.URL) (*site.ResultsPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: pageURL.String(), What: "unreadable HTML", Err: err}
	}
	page, err := s.layout.ParseResults(doc, pageURL)
	if err != nil {
		what := "results table not readable"
		if errors.Is(err, site.ErrNoTable) {
			what = "no results table found"
		}
		return nil, &ParseError{URL: pageURL.String(), What: what, Err: err}
	}
	return page, nil
}

// pageKey identifies a page regardless of fragment and query parameter order
func pageKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.RawQuery = c.Query().Encode()
	return c.String()
}
