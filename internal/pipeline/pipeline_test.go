package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/filter"
	"github.com/pfrederiksen/pulep-events/internal/scraper"
)

// fakeSource serves rows from memory and fails the detail URLs in fail
type fakeSource struct {
	rows     []event.ResultRow
	warnings []event.Warning
	rowsErr  error
	fail     map[string]error
	jitter   bool

	gotSelection url.Values
	inFlight     int32
	maxInFlight  int32
	calls        int32
	mu           sync.Mutex
}

func (f *fakeSource) Rows(ctx context.Context, selection url.Values, warn func(event.Warning)) iter.Seq2[event.ResultRow, error] {
	return func(yield func(event.ResultRow, error) bool) {
		f.gotSelection = selection
		for _, w := range f.warnings {
			warn(w)
		}
		for _, r := range f.rows {
			if !yield(r, nil) {
				return
			}
		}
		if f.rowsErr != nil {
			yield(event.ResultRow{}, f.rowsErr)
		}
	}
}

func (f *fakeSource) FetchDetail(ctx context.Context, detailURL string) (event.Record, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if n > f.maxInFlight {
		f.maxInFlight = n
	}
	f.mu.Unlock()

	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
	if err := ctx.Err(); err != nil {
		return event.Record{}, err
	}
	if err, ok := f.fail[detailURL]; ok {
		return event.Record{}, err
	}
	return event.NewRecord("Nombre", "detalle de "+detailURL), nil
}

func makeRows(pages, perPage int) []event.ResultRow {
	var rows []event.ResultRow
	for p := 1; p <= pages; p++ {
		for i := 1; i <= perPage; i++ {
			idx := (p-1)*perPage + i
			rows = append(rows, event.ResultRow{
				Index:     idx,
				Page:      p,
				Fields:    event.NewRecord("Código", fmt.Sprint(idx)),
				DetailURL: fmt.Sprintf("https://pulep.test/InformesPublicos/EventoFichap/%d", idx),
			})
		}
	}
	return rows
}

func TestRun_AllDetailsSucceed(t *testing.T) {
	src := &fakeSource{rows: makeRows(2, 5), jitter: true}

	sel := filter.New()
	sel.Add("anio", "2025")

	res, err := Run(context.Background(), src, Request{Selection: sel, IncludeDetails: true, Concurrency: 3})
	require.NoError(t, err)

	assert.Len(t, res.Rows, 10)
	require.Len(t, res.Details, 10)
	assert.Equal(t, 0, res.Failed())
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, "2025", src.gotSelection.Get("anio"))

	for i, d := range res.Details {
		assert.Equal(t, res.Rows[i].Index, d.Index, "details keep row order")
		assert.Equal(t, res.Rows[i].DetailURL, d.DetailURL)
		assert.False(t, d.Failed())
	}
	assert.Equal(t, 2, res.Rows[5].Page)
	assert.Equal(t, 6, res.Details[5].Index)
	assert.LessOrEqual(t, src.maxInFlight, int32(3))
}

func TestRun_OneDetailFails(t *testing.T) {
	rows := makeRows(2, 5)
	src := &fakeSource{
		rows: rows,
		fail: map[string]error{rows[3].DetailURL: &scraper.FetchError{URL: rows[3].DetailURL, StatusCode: 500, Err: errors.New("unexpected status code: 500")}},
	}

	res, err := Run(context.Background(), src, Request{IncludeDetails: true})
	require.NoError(t, err)

	assert.Len(t, res.Rows, 10)
	require.Len(t, res.Details, 10)
	require.Equal(t, 1, res.Failed())

	flagged := 0
	for _, d := range res.Details {
		if d.Failed() {
			flagged++
			assert.Equal(t, 4, d.Index)
			assert.Contains(t, d.Err, "500")
			assert.Equal(t, 0, d.Fields.Len())
		}
	}
	assert.Equal(t, 1, flagged)

	pe := res.Errors[0]
	assert.Equal(t, 4, pe.Index)
	var fe *scraper.FetchError
	assert.True(t, errors.As(pe, &fe))
}

func TestRun_NoDetails(t *testing.T) {
	src := &fakeSource{rows: makeRows(1, 3)}

	res, err := Run(context.Background(), src, Request{IncludeDetails: false})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
	assert.Empty(t, res.Details)
	assert.Equal(t, int32(0), src.calls)
}

func TestRun_MaxDetailsAndMissingLinks(t *testing.T) {
	rows := makeRows(1, 6)
	rows[1].DetailURL = ""
	src := &fakeSource{rows: rows, warnings: []event.Warning{{Page: 1, Row: 9, Message: "skipped"}}}

	res, err := Run(context.Background(), src, Request{IncludeDetails: true, MaxDetails: 3})
	require.NoError(t, err)

	require.Len(t, res.Details, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{res.Details[0].Index, res.Details[1].Index, res.Details[2].Index})

	require.Len(t, res.Warnings, 3)
	assert.Equal(t, "skipped", res.Warnings[0].Message)
	assert.Equal(t, 2, res.Warnings[1].Row)
	assert.Contains(t, res.Warnings[2].Message, "detail limit of 3")
}

func TestRun_ListingErrorIsFatal(t *testing.T) {
	qe := &scraper.QueryError{URL: "https://pulep.test/InformesPublicos/Eventos", StatusCode: 502}
	src := &fakeSource{rows: makeRows(1, 2), rowsErr: qe}

	res, err := Run(context.Background(), src, Request{IncludeDetails: true})
	assert.Nil(t, res)
	var got *scraper.QueryError
	require.True(t, errors.As(err, &got))
	assert.Same(t, qe, got)
}

func TestRun_Cancelled(t *testing.T) {
	src := &fakeSource{rows: makeRows(2, 5), jitter: true}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, src, Request{IncludeDetails: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Progress(t *testing.T) {
	src := &fakeSource{rows: makeRows(1, 4)}

	var calls []int
	res, err := Run(context.Background(), src, Request{
		IncludeDetails: true,
		Concurrency:    2,
		Progress: func(done, total int) {
			assert.Equal(t, 4, total)
			calls = append(calls, done)
		},
	})
	require.NoError(t, err)
	assert.Len(t, res.Details, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}
