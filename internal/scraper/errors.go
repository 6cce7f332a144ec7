package scraper

import (
	"errors"
	"fmt"
)

// ErrRobotsDisallowed is wrapped by FetchError when robots.txt forbids a URL
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// FetchError is a network or HTTP failure while fetching a page
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means an expected structure was missing from a page
type ParseError struct {
	URL  string
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s; the site structure may have changed", e.URL, e.What)
}

func (e *ParseError) Unwrap() error { return e.Err }

// QueryError is a failure submitting the search query
type QueryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *QueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("query %s: server answered %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("query %s: %v", e.URL, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// PartialRowError is one detail page that could not be fetched or parsed.
// It never aborts a run.
type PartialRowError struct {
	Index int
	URL   string
	Err   error
}

func (e *PartialRowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *PartialRowError) Unwrap() error { return e.Err }

// asQueryError converts a fetch failure of the query stage
func asQueryError(err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return &QueryError{URL: fe.URL, StatusCode: fe.StatusCode, Err: fe}
	}
	return err
}
