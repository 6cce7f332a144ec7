package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pfrederiksen/pulep-events/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.NewConfig()
	cfg.BaseURL = "not a url"
	if _, err := New(cfg); !errors.Is(err, config.ErrInvalidBaseURL) {
		t.Errorf("New() error = %v, want ErrInvalidBaseURL", err)
	}

	s, err := New(config.NewConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.client.Timeout != config.DefaultTimeout {
		t.Errorf("client timeout = %v, want %v", s.client.Timeout, config.DefaultTimeout)
	}
	if s.client.Jar == nil {
		t.Error("client should keep cookies for the grid session")
	}
	if s.Layout().Name() != "pulep" {
		t.Errorf("layout = %q", s.Layout().Name())
	}
	if s.robots != nil {
		t.Error("robots gate should be off by default")
	}
}

func TestDiscoverFilters(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantFields []string
		check      func(*testing.T, error)
	}{
		{
			name:       "form with selects",
			statusCode: http.StatusOK,
			body: `<form><select name="anio"><option value="">(Todos)</option><option value="2025">2025</option></select>
				<select id="municipio"><option value="001">Bogotá</option></select></form>`,
			wantFields: []string{"anio", "municipio"},
		},
		{
			name:       "site down",
			statusCode: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				var fe *FetchError
				if !errors.As(err, &fe) || fe.StatusCode != http.StatusServiceUnavailable {
					t.Errorf("error = %v, want *FetchError 503", err)
				}
			},
		},
		{
			name:       "structure changed",
			statusCode: http.StatusOK,
			body:       `<html><body><p>Nuevo portal</p></body></html>`,
			check: func(t *testing.T, err error) {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("error = %v, want *ParseError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/InformesPublicos/Eventos" {
					t.Errorf("path = %q", r.URL.Path)
				}
				if ua := r.Header.Get("User-Agent"); ua != testUserAgent {
					t.Errorf("User-Agent = %q", ua)
				}
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			s, err := New(testConfig(server.URL, config.ModeHTML))
			if err != nil {
				t.Fatal(err)
			}

			fields, err := s.DiscoverFilters(context.Background())
			if tt.check != nil {
				tt.check(t, err)
				return
			}
			if err != nil {
				t.Fatalf("DiscoverFilters() error = %v", err)
			}
			if got := fields.Names(); fmt.Sprint(got) != fmt.Sprint(tt.wantFields) {
				t.Errorf("fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, "<table></table>")
	}))
	defer server.Close()

	s, err := New(testConfig(server.URL, config.ModeHTML))
	if err != nil {
		t.Fatal(err)
	}

	page, err := s.Query(context.Background(), url.Values{"anio": {"2025"}, "departamento": {"11"}})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if gotQuery.Get("anio") != "2025" || gotQuery.Get("departamento") != "11" {
		t.Errorf("query string = %v", gotQuery)
	}
	if string(page.Body) != "<table></table>" {
		t.Errorf("body = %q", page.Body)
	}
	if page.URL.Path != "/InformesPublicos/Eventos" {
		t.Errorf("URL = %v", page.URL)
	}
}

func TestQuery_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	s, err := New(testConfig(server.URL, config.ModeHTML))
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Query(context.Background(), nil)
	var qe *QueryError
	if !errors.As(err, &qe) || qe.StatusCode != http.StatusBadRequest {
		t.Errorf("error = %v, want *QueryError 400", err)
	}

	server.Close()
	_, err = s.Query(context.Background(), nil)
	if !errors.As(err, &qe) || qe.StatusCode != 0 {
		t.Errorf("error = %v, want transport *QueryError", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Error("QueryError should wrap the FetchError")
	}
}

func TestFetchDetail(t *testing.T) {
	server := httptest.NewServer(&fakePULEP{detailFail: map[int]int{7: http.StatusInternalServerError}})
	defer server.Close()

	s, err := New(testConfig(server.URL, config.ModeHTML))
	if err != nil {
		t.Fatal(err)
	}

	rec, err := s.FetchDetail(context.Background(), server.URL+"/InformesPublicos/EventoFichap/3")
	if err != nil {
		t.Fatalf("FetchDetail() error = %v", err)
	}
	if rec.Get("Nombre") != "Evento 3" || rec.Get("Aforo") != "300" {
		t.Errorf("record = %v / %v", rec.Get("Nombre"), rec.Get("Aforo"))
	}

	_, err = s.FetchDetail(context.Background(), server.URL+"/InformesPublicos/EventoFichap/7")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %v, want *FetchError 500", err)
	}
}

func TestFetchDetail_EmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>   </body></html>")
	}))
	defer server.Close()

	s, err := New(testConfig(server.URL, config.ModeHTML))
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.FetchDetail(context.Background(), server.URL+"/InformesPublicos/EventoFichap/1")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want *ParseError", err)
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		name         string
		retries      int
		failures     int32
		status       int
		wantErr      bool
		wantAttempts int32
	}{
		{"no retries by default", 0, 1, http.StatusServiceUnavailable, true, 1},
		{"retry recovers 503", 2, 1, http.StatusServiceUnavailable, false, 2},
		{"retry recovers 429", 1, 1, http.StatusTooManyRequests, false, 2},
		{"gives up after retries", 1, 5, http.StatusBadGateway, true, 2},
		{"404 is not retried", 3, 5, http.StatusNotFound, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&attempts, 1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				fmt.Fprint(w, "<table><tr><th>Nombre</th><td>ok</td></tr></table>")
			}))
			defer server.Close()

			cfg := testConfig(server.URL, config.ModeHTML)
			cfg.Retries = tt.retries
			s, err := New(cfg, WithRetryWait(time.Millisecond))
			if err != nil {
				t.Fatal(err)
			}

			_, err = s.FetchDetail(context.Background(), server.URL+"/InformesPublicos/EventoFichap/1")
			if (err != nil) != tt.wantErr {
				t.Errorf("FetchDetail() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestRobotsGate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /InformesPublicos/EventoFichap/\n")
			return
		}
		fmt.Fprint(w, "<form><select name=\"anio\"><option>2025</option></select></form>")
	}))
	defer server.Close()

	cfg := testConfig(server.URL, config.ModeHTML)
	cfg.RespectRobots = true
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.DiscoverFilters(context.Background()); err != nil {
		t.Errorf("search page should be allowed: %v", err)
	}

	_, err = s.FetchDetail(context.Background(), server.URL+"/InformesPublicos/EventoFichap/1")
	if !errors.Is(err, ErrRobotsDisallowed) {
		t.Errorf("error = %v, want ErrRobotsDisallowed", err)
	}
}

func TestContextCancelled(t *testing.T) {
	server := httptest.NewServer(&fakePULEP{pages: 1, perPage: 1})
	defer server.Close()

	s, err := New(testConfig(server.URL, config.ModeHTML))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.FetchDetail(ctx, server.URL+"/InformesPublicos/EventoFichap/1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestPageKey(t *testing.T) {
	a, _ := url.Parse("https://x/InformesPublicos/Eventos?page=2&anio=2025#top")
	b, _ := url.Parse("https://x/InformesPublicos/Eventos?anio=2025&page=2")
	if pageKey(a) != pageKey(b) {
		t.Errorf("pageKey(%v) != pageKey(%v)", a, b)
	}
}
