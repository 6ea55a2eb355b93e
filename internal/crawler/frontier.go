package crawler

import (
	"net/url"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "apatel341/fabricworker/pkg/errors"
)

// Frontier tracks which URLs the crawl has seen and which listing pages
// are still waiting. All mutation goes through claim-style operations
// under one lock, so two workers can never win the same URL.
//
// The visited set is an LRU rather than an unbounded map; on very long
// crawls the oldest entries fall out, bounding memory at the cost of a
// rare repeat visit.
type Frontier struct {
	mu      sync.Mutex
	visited *lru.Cache[string, struct{}]
	queued  map[string]struct{}
	pending []string
}

// NewFrontier creates a frontier whose visited set holds up to capacity URLs.
func NewFrontier(capacity int) (*Frontier, error) {
	visited, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, apperrors.NewConfiguration("visited capacity invalid", err)
	}
	return &Frontier{
		visited: visited,
		queued:  make(map[string]struct{}),
	}, nil
}

// Enqueue adds a listing URL to the pending queue unless it was already
// visited or is already waiting. Reports whether the URL was accepted.
func (f *Frontier) Enqueue(rawURL string) bool {
	key := normalizeURL(rawURL)
	if key == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visited.Contains(key) {
		return false
	}
	if _, waiting := f.queued[key]; waiting {
		return false
	}
	f.queued[key] = struct{}{}
	f.pending = append(f.pending, key)
	return true
}

// Next pops the oldest pending URL and marks it visited in the same
// step. Returns false when the queue is drained.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) > 0 {
		key := f.pending[0]
		f.pending = f.pending[1:]
		delete(f.queued, key)
		if f.visited.Contains(key) {
			continue
		}
		f.visited.Add(key, struct{}{})
		return key, true
	}
	return "", false
}

// Claim marks a URL visited and reports whether the caller won it.
// Exactly one of any number of concurrent claims for the same URL
// succeeds.
func (f *Frontier) Claim(rawURL string) bool {
	key := normalizeURL(rawURL)
	if key == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visited.Contains(key) {
		return false
	}
	f.visited.Add(key, struct{}{})
	return true
}

// Pending reports how many listing URLs are waiting.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Seen reports how many URLs have been claimed so far.
func (f *Frontier) Seen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Len()
}

// normalizeURL reduces spellings of the same page to one dedupe key:
// fragments are dropped, scheme and host are lowercased, and a bare
// host gets the root path.
func normalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
