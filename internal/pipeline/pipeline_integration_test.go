package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/pulep-events/internal/config"
	"github.com/pfrederiksen/pulep-events/internal/scraper"
)

// registry serves two results pages of five rows and a detail page per row.
// Detail ids listed in failing answer 500.
func registry(t *testing.T, failing ...int) *httptest.Server {
	t.Helper()
	fail := make(map[int]bool)
	for _, id := range failing {
		fail[id] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/InformesPublicos/Eventos", func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			page = p
		}
		var b strings.Builder
		b.WriteString(`<table><thead><tr><th>Código</th><th>Evento</th></tr></thead><tbody>`)
		for i := 1; i <= 5; i++ {
			id := (page-1)*5 + i
			fmt.Fprintf(&b, `<tr><td>%d</td><td><a href="/InformesPublicos/EventoFichap/%d">Evento %d</a></td></tr>`, id, id, id)
		}
		b.WriteString(`</tbody></table>`)
		// page 2 points at itself
		b.WriteString(`<ul class="pagination"><li class="next"><a href="?page=2">»</a></li></ul>`)
		fmt.Fprint(w, b.String())
	})
	mux.HandleFunc("/InformesPublicos/EventoFichap/", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/InformesPublicos/EventoFichap/"))
		if fail[id] {
			http.Error(w, "error interno", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `<div><strong>Evento:</strong> Evento %d</div><div><strong>Aforo:</strong> %d</div>`, id, id*10)
	})
	return httptest.NewServer(mux)
}

func newScraper(t *testing.T, baseURL string) *scraper.Scraper {
	t.Helper()
	cfg := config.NewConfig()
	cfg.BaseURL = baseURL
	cfg.RequestDelay = 0
	cfg.Mode = config.ModeHTML
	s, err := scraper.New(cfg)
	require.NoError(t, err)
	return s
}

func TestRun_TwoPagesAllDetails(t *testing.T) {
	server := registry(t)
	defer server.Close()

	res, err := Run(context.Background(), newScraper(t, server.URL), Request{IncludeDetails: true, Concurrency: 4})
	require.NoError(t, err)

	require.Len(t, res.Rows, 10)
	require.Len(t, res.Details, 10)
	assert.Equal(t, 0, res.Failed())

	sixth := res.Rows[5]
	assert.Equal(t, 2, sixth.Page)
	assert.Equal(t, "6", sixth.Fields.Get("Código"))
	assert.Equal(t, 6, res.Details[5].Index)
	assert.Equal(t, "Evento 6", res.Details[5].Fields.Get("Evento"))
	assert.Equal(t, "60", res.Details[5].Fields.Get("Aforo"))
}

func TestRun_OneDetailReturns500(t *testing.T) {
	server := registry(t, 7)
	defer server.Close()

	res, err := Run(context.Background(), newScraper(t, server.URL), Request{IncludeDetails: true})
	require.NoError(t, err)

	assert.Len(t, res.Rows, 10)
	require.Len(t, res.Details, 10)

	var flagged []int
	for _, d := range res.Details {
		if d.Failed() {
			flagged = append(flagged, d.Index)
		}
	}
	assert.Equal(t, []int{7}, flagged)
	require.Len(t, res.Errors, 1)

	var fe *scraper.FetchError
	require.ErrorAs(t, res.Errors[0], &fe)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
}
