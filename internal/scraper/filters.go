package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/site"
)

// DiscoverFilters reads the select controls of the search form
func (s *Scraper) DiscoverFilters(ctx context.Context) (event.FilterSet, error) {
	target := s.resolve(s.layout.SearchPath()).String()

	body, _, err := s.send(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: target, What: "unreadable HTML", Err: err}
	}

	fields, err := s.layout.ParseFilters(doc)
	if err != nil {
		if errors.Is(err, site.ErrNoFilters) {
			return nil, &ParseError{URL: target, What: "no filter controls found", Err: err}
		}
		return nil, fmt.Errorf("parsing filters: %w", err)
	}

	logger.Info("discovered filters", logger.Fields{"url": target, "fields": len(fields)})
	return event.FilterSet(fields), nil
}
