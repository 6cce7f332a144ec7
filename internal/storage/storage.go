package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pfrederiksen/pulep-events/internal/event"
)

// Storage handles persistence of cached filter options
type Storage struct {
	dataDir string
}

// FilterSource identifies where a set of filters was discovered. A cached
// snapshot is only served back for the same source, so editing the layout
// selectors invalidates it.
type FilterSource struct {
	BaseURL    string `json:"base_url"`
	SearchPath string `json:"search_path"`
	Form       string `json:"form"`
}

// FilterSnapshot is the cached result of a filter discovery
type FilterSnapshot struct {
	FilterSource
	FetchedAt time.Time       `json:"fetched_at"`
	Fields    event.FilterSet `json:"fields"`
}

// Expired reports whether the snapshot is older than ttl. A zero ttl
// expires everything.
func (f *FilterSnapshot) Expired(ttl time.Duration) bool {
	return ttl <= 0 || time.Since(f.FetchedAt) > ttl
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// Dir returns the data directory
func (s *Storage) Dir() string {
	return s.dataDir
}

// filtersPath returns filters_<host>.json for the registry at baseURL
func (s *Storage) filtersPath(baseURL string) string {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '_'
	}, strings.ToLower(host))
	return filepath.Join(s.dataDir, fmt.Sprintf("filters_%s.json", host))
}

// LoadFilters returns the cached filters for src, or nil when there is no
// cache, it is older than ttl or it was discovered from another source
func (s *Storage) LoadFilters(src FilterSource, ttl time.Duration) (*FilterSnapshot, error) {
	path := s.filtersPath(src.BaseURL)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading filter cache: %w", err)
	}

	var snapshot FilterSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing filter cache: %w", err)
	}

	if snapshot.FilterSource != src || len(snapshot.Fields) == 0 || snapshot.Expired(ttl) {
		return nil, nil
	}
	return &snapshot, nil
}

// SaveFilters caches fields discovered from src, replacing any snapshot for
// the same registry host
func (s *Storage) SaveFilters(src FilterSource, fields event.FilterSet) error {
	return s.saveSnapshot(&FilterSnapshot{
		FilterSource: src,
		FetchedAt:    time.Now().UTC(),
		Fields:       fields,
	})
}

// ClearFilters removes the cache for baseURL
func (s *Storage) ClearFilters(baseURL string) error {
	if err := os.Remove(s.filtersPath(baseURL)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing filter cache: %w", err)
	}
	return nil
}

func (s *Storage) saveSnapshot(snapshot *FilterSnapshot) error {
	path := s.filtersPath(snapshot.BaseURL)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding filter cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing filter cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing filter cache: %w", err)
	}
	return nil
}
