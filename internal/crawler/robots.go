package crawler

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"apatel341/fabricworker/logger"
)

// RobotsGate answers whether a URL may be fetched under the site's
// robots.txt. Rules are fetched once per host and cached for the life
// of the gate. Any failure to obtain or parse the rules counts as
// permission, so an unreachable robots.txt never stalls a crawl.
type RobotsGate struct {
	client *http.Client

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

type robotsEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
}

// NewRobotsGate creates a gate that fetches rules with the given client.
func NewRobotsGate(client *http.Client) *RobotsGate {
	return &RobotsGate{
		client: client,
		hosts:  make(map[string]*robotsEntry),
	}
}

// Allowed reports whether agent may fetch pageURL.
func (g *RobotsGate) Allowed(ctx context.Context, pageURL, agent string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return true
	}
	base := u.Scheme + "://" + u.Host
	entry := g.entry(base)
	entry.once.Do(func() {
		entry.data = g.fetch(ctx, base, agent)
	})
	if entry.data == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return entry.data.TestAgent(path, agent)
}

func (g *RobotsGate) entry(base string) *robotsEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.hosts[base]
	if !ok {
		entry = &robotsEntry{}
		g.hosts[base] = entry
	}
	return entry
}

// fetch returns nil when the rules cannot be obtained, which the caller
// treats as allow-all.
func (g *RobotsGate) fetch(ctx context.Context, base, agent string) *robotstxt.RobotsData {
	robotsURL := base + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", agent)

	resp, err := g.client.Do(req)
	if err != nil {
		logger.Debug("robots.txt fetch failed for %s: %v", base, err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		logger.Debug("robots.txt parse failed for %s: %v", base, err)
		return nil
	}
	return data
}
