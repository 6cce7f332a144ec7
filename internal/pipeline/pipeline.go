// Package pipeline runs one scrape: it collects every result row for a
// filter selection, fetches the detail page behind each row with a bounded
// pool of workers, and returns both tables in row order.
//
// A failed detail page never aborts the run. It is recorded as a
// DetailRecord with its error marker set and as a *scraper.PartialRowError,
// so the detail table always has one record per selected row.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/filter"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/scraper"
)

// DefaultConcurrency is used when Request.Concurrency is not positive
const DefaultConcurrency = 4

// Source is where rows and details come from. *scraper.Scraper implements it.
type Source interface {
	Rows(ctx context.Context, selection url.Values, warn func(event.Warning)) iter.Seq2[event.ResultRow, error]
	FetchDetail(ctx context.Context, detailURL string) (event.Record, error)
}

// Request describes one run
type Request struct {
	Selection      *filter.Selection
	IncludeDetails bool
	MaxDetails     int // 0 means every row with a link
	Concurrency    int

	// Progress is called after each detail page, possibly from several
	// goroutines but never concurrently
	Progress func(done, total int)
}

// Result is everything a run produced
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Selection  *filter.Selection
	Rows       []event.ResultRow
	Details    []event.DetailRecord
	Warnings   []event.Warning
	Errors     []*scraper.PartialRowError
}

// Failed returns the number of detail records with an error marker
func (r *Result) Failed() int {
	return len(r.Errors)
}

// Duration returns how long the run took
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run executes the request against src. Errors from the listing stage
// (*scraper.FetchError, *scraper.QueryError, *scraper.ParseError) are
// returned unchanged; detail failures are not errors of Run.
func Run(ctx context.Context, src Source, req Request) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Selection: req.Selection.Clone(),
	}
	defer func() { logger.RecordTiming("pipeline.run", time.Since(res.StartedAt)) }()

	logger.Info("starting run", logger.Fields{
		"run_id":  res.RunID,
		"filters": res.Selection.String(),
		"details": req.IncludeDetails,
	})

	warn := func(w event.Warning) {
		res.Warnings = append(res.Warnings, w)
	}

	for row, err := range src.Rows(ctx, res.Selection.Values(), warn) {
		if err != nil {
			logger.Error("reading results failed", logger.Fields{"run_id": res.RunID, "rows": len(res.Rows)}, err)
			return nil, err
		}
		res.Rows = append(res.Rows, row)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info("results collected", logger.Fields{"run_id": res.RunID, "rows": len(res.Rows)})
	logger.SetGauge("rows.collected", float64(len(res.Rows)))

	if req.IncludeDetails {
		targets := selectTargets(res.Rows, req.MaxDetails, warn)
		if err := fetchDetails(ctx, src, req, targets, res); err != nil {
			return nil, err
		}
	}

	res.FinishedAt = time.Now().UTC()
	logger.Info("run finished", logger.Fields{
		"run_id":   res.RunID,
		"rows":     len(res.Rows),
		"details":  len(res.Details),
		"failed":   res.Failed(),
		"warnings": len(res.Warnings),
		"elapsed":  res.Duration().String(),
	})
	return res, nil
}

// selectTargets returns the rows whose details will be fetched. Rows
// without a link, and rows past the limit, are reported through warn.
func selectTargets(rows []event.ResultRow, limit int, warn func(event.Warning)) []event.ResultRow {
	targets := make([]event.ResultRow, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if row.DetailURL == "" {
			warn(event.Warning{Page: row.Page, Row: row.Index, Message: "row has no detail link"})
			continue
		}
		if limit > 0 && len(targets) >= limit {
			skipped++
			continue
		}
		targets = append(targets, row)
	}
	if skipped > 0 {
		warn(event.Warning{Message: fmt.Sprintf("detail limit of %d reached; %d rows were not expanded", limit, skipped)})
	}
	return targets
}

// fetchDetails fills res.Details and res.Errors in the order of targets
// regardless of completion order
func fetchDetails(ctx context.Context, src Source, req Request, targets []event.ResultRow, res *Result) error {
	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	details := make([]event.DetailRecord, len(targets))
	failures := make([]*scraper.PartialRowError, len(targets))

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if req.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		req.Progress(done, len(targets))
	}

	logger.Info("fetching details", logger.Fields{"run_id": res.RunID, "count": len(targets), "concurrency": concurrency})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, row := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rec, err := src.FetchDetail(gctx, row.DetailURL)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				details[i] = event.DetailRecord{Index: row.Index, DetailURL: row.DetailURL, Err: err.Error()}
				failures[i] = &scraper.PartialRowError{Index: row.Index, URL: row.DetailURL, Err: err}
				logger.IncrCounter("details.failed")
				logger.Warn("detail fetch failed", logger.Fields{"row": row.Index, "url": row.DetailURL, "error": err})
			} else {
				details[i] = event.DetailRecord{Index: row.Index, DetailURL: row.DetailURL, Fields: rec}
				logger.IncrCounter("details.fetched")
			}
			report()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	res.Details = details
	for _, f := range failures {
		if f != nil {
			res.Errors = append(res.Errors, f)
		}
	}
	return nil
}
