package scraper

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/site"
)

// FetchDetail fetches one detail page and extracts its label/value pairs.
// Failures are *FetchError or *ParseError.
func (s *Scraper) FetchDetail(ctx context.Context, detailURL string) (event.Record, error) {
	start := time.Now()
	defer func() { logger.RecordTiming("detail.fetch", time.Since(start)) }()

	body, _, err := s.send(ctx, http.MethodGet, detailURL, nil)
	if err != nil {
		return event.Record{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return event.Record{}, &ParseError{URL: detailURL, What: "unreadable HTML", Err: err}
	}

	rec, err := s.layout.ParseDetail(doc)
	if err != nil {
		what := "detail page not readable"
		if errors.Is(err, site.ErrEmptyDocument) {
			what = "empty detail page"
		}
		return event.Record{}, &ParseError{URL: detailURL, What: what, Err: err}
	}
	return *rec, nil
}
