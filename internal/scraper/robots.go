package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/pfrederiksen/pulep-events/internal/logger"
)

// robotsGate caches robots.txt per host. A missing or unreadable
// robots.txt allows everything.
type robotsGate struct {
	mu        sync.Mutex
	client    *http.Client
	userAgent string
	groups    map[string]*robotstxt.Group
}

func newRobotsGate(client *http.Client, userAgent string) *robotsGate {
	return &robotsGate{
		client:    client,
		userAgent: userAgent,
		groups:    make(map[string]*robotstxt.Group),
	}
}

func (g *robotsGate) allowed(ctx context.Context, target string) (bool, error) {
	u, err := url.Parse(target)
	if err != nil {
		return false, fmt.Errorf("parsing url: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	group, ok := g.groups[u.Host]
	if !ok {
		group = g.fetch(ctx, u)
		g.groups[u.Host] = group
	}
	if group == nil {
		return true, nil
	}
	return group.Test(u.RequestURI()), nil
}

func (g *robotsGate) fetch(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		logger.Debug("robots.txt unavailable", logger.Fields{"url": robotsURL, "error": err})
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data.FindGroup(g.userAgent)
}
