package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/pfrederiksen/pulep-events/internal/config"
	"github.com/pfrederiksen/pulep-events/internal/logger"
	"github.com/pfrederiksen/pulep-events/internal/site"
)

const maxBodySize = 32 << 20

// Scraper handles fetching and parsing the PULEP events reports.
// It is safe for concurrent use once created.
type Scraper struct {
	client       *http.Client
	base         *url.URL
	layout       site.Layout
	limiter      *rate.Limiter
	robots       *robotsGate
	userAgent    string
	retries      int
	retryWait    time.Duration
	mode         config.Mode
	maxPages     int
	gridPageSize int
}

// Option customises a Scraper
type Option func(*Scraper)

// WithRetryWait sets the first backoff interval between retries
func WithRetryWait(d time.Duration) Option {
	return func(s *Scraper) {
		s.retryWait = d
	}
}

// New creates a Scraper from cfg. cfg should already be validated.
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBaseURL, cfg.BaseURL)
	}

	s := &Scraper{
		base:         base,
		layout:       site.NewPULEP(cfg.Layout),
		limiter:      rate.NewLimiter(rate.Inf, 1),
		userAgent:    cfg.UserAgent,
		retries:      cfg.Retries,
		retryWait:    500 * time.Millisecond,
		mode:         cfg.Mode,
		maxPages:     cfg.MaxPages,
		gridPageSize: cfg.GridPageSize,
	}
	if cfg.RequestDelay > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	if s.gridPageSize < 1 {
		s.gridPageSize = config.DefaultGridPageSize
	}

	for _, opt := range opts {
		opt(s)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	s.client = &http.Client{Timeout: cfg.Timeout, Jar: jar}
	if cfg.RespectRobots {
		s.robots = newRobotsGate(s.client, s.userAgent)
	}

	return s, nil
}

// Layout returns the layout used to read pages
func (s *Scraper) Layout() site.Layout {
	return s.layout
}

// Base returns the registry base URL
func (s *Scraper) Base() *url.URL {
	u := *s.base
	return &u
}

func (s *Scraper) resolve(path string) *url.URL {
	ref, err := url.Parse(path)
	if err != nil {
		return s.Base()
	}
	return s.base.ResolveReference(ref)
}

// retryableError marks a failure worth another attempt
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// send performs one paced request, retrying transport errors, 429 and 5xx
// when retries are enabled. It returns the body and the final URL after
// redirects. Failures are *FetchError.
func (s *Scraper) send(ctx context.Context, method, target string, form url.Values) ([]byte, *url.URL, error) {
	if s.robots != nil {
		allowed, err := s.robots.allowed(ctx, target)
		if err != nil {
			return nil, nil, &FetchError{URL: target, Err: err}
		}
		if !allowed {
			return nil, nil, &FetchError{URL: target, Err: ErrRobotsDisallowed}
		}
	}

	var (
		body     []byte
		finalURL *url.URL
		attempt  int
	)

	operation := func() error {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(&FetchError{URL: target, Err: err})
		}

		b, u, err := s.once(ctx, method, target, form)
		if err == nil {
			body, finalURL = b, u
			return nil
		}

		var retry *retryableError
		if errors.As(err, &retry) && ctx.Err() == nil {
			logger.Debug("request failed", logger.Fields{"url": target, "attempt": attempt, "error": retry.err})
			return retry.err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryWait
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.retries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		logger.IncrCounter("http.errors")
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{URL: target, Err: err}
		}
		return nil, nil, err
	}
	if attempt > 1 {
		logger.DefaultMetrics().AddCounter("http.retries", int64(attempt-1))
	}
	return body, finalURL, nil
}

func (s *Scraper) once(ctx context.Context, method, target string, form url.Values) ([]byte, *url.URL, error) {
	var payload io.Reader
	if form != nil {
		payload = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, nil, &FetchError{URL: target, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "es-CO,es;q=0.9")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	start := time.Now()
	logger.IncrCounter("http.requests")
	resp, err := s.client.Do(req)
	logger.RecordTiming("http.request", time.Since(start))
	if err != nil {
		return nil, nil, &retryableError{&FetchError{URL: target, Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := &FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, nil, &retryableError{fe}
		}
		return nil, nil, fe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, &retryableError{&FetchError{URL: target, Err: fmt.Errorf("reading body: %w", err)}}
	}

	logger.Debug("fetched", logger.Fields{
		"method": method,
		"url":    target,
		"status": resp.StatusCode,
		"bytes":  len(body),
	})
	return body, resp.Request.URL, nil
}
