package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "apatel341/fabricworker/pkg/errors"
)

func newTestFetcher(t *testing.T, client *http.Client, agents []string) (*Fetcher, *HostLimiter) {
	t.Helper()
	rotator, err := NewIdentityRotator(agents)
	require.NoError(t, err)
	limiter := NewHostLimiter(HostLimiterOptions{
		BaseDelay:  time.Millisecond,
		StartDelay: time.Millisecond,
		MaxDelay:   64 * time.Millisecond,
		Cooldown:   time.Minute,
	}, nil)
	return NewFetcher(client, rotator, limiter, nil, 1<<20), limiter
}

func TestFetcherReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><h1>Cotton Fabric</h1></html>"))
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t, server.Client(), []string{testAgent})
	page, err := fetcher.Fetch(context.Background(), server.URL+"/proddetail/cotton.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, server.URL+"/proddetail/cotton.html", page.URL)
	assert.Contains(t, page.Body, "Cotton Fabric")
}

func TestFetcherStatusClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"too many requests", 429, true},
		{"internal error", 500, true},
		{"bad gateway", 502, true},
		{"service unavailable", 503, true},
		{"gateway timeout", 504, true},
		{"not found", 404, false},
		{"forbidden", 403, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &http.Client{}
			httpmock.ActivateNonDefault(client)
			defer httpmock.DeactivateAndReset()

			pageURL := fmt.Sprintf("https://www.indiamart.com/proddetail/p-%d.html", tc.status)
			httpmock.RegisterResponder("GET", pageURL, httpmock.NewStringResponder(tc.status, "nope"))

			fetcher, _ := newTestFetcher(t, client, []string{testAgent})
			_, err := fetcher.Fetch(context.Background(), pageURL)
			require.Error(t, err)
			assert.Equal(t, tc.retryable, apperrors.IsRetryable(err))
			if tc.retryable {
				assert.Equal(t, apperrors.KindFetchRetryable, apperrors.KindOf(err))
			} else {
				assert.Equal(t, apperrors.KindFetchPermanent, apperrors.KindOf(err))
			}
		})
	}
}

func TestFetcherTransportErrorIsRetryableBackpressure(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	pageURL := "https://www.indiamart.com/proddetail/refused.html"
	httpmock.RegisterResponder("GET", pageURL, httpmock.NewErrorResponder(errors.New("connection refused")))

	fetcher, limiter := newTestFetcher(t, client, []string{testAgent})
	_, err := fetcher.Fetch(context.Background(), pageURL)
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.True(t, IsBackpressure(err))
	assert.Equal(t, 2*time.Millisecond, limiter.Delay("www.indiamart.com"))
}

func TestFetcherBackpressureWidensSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()
	host := strings.TrimPrefix(server.URL, "http://")

	fetcher, limiter := newTestFetcher(t, server.Client(), []string{testAgent})
	_, err := fetcher.Fetch(context.Background(), server.URL+"/p")
	require.Error(t, err)
	assert.True(t, IsBackpressure(err))
	assert.Equal(t, 2*time.Millisecond, limiter.Delay(host))

	// A plain 404 is neither backpressure nor success
	notFound := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer notFound.Close()
	nfHost := strings.TrimPrefix(notFound.URL, "http://")
	_, err = fetcher.Fetch(context.Background(), notFound.URL+"/p")
	require.Error(t, err)
	assert.False(t, IsBackpressure(err))
	assert.Equal(t, time.Millisecond, limiter.Delay(nfHost))
}

func TestFetcherRotatesIdentities(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t, server.Client(), []string{"ua-one", "ua-two"})
	for i := 0; i < 4; i++ {
		_, err := fetcher.Fetch(context.Background(), server.URL+"/p")
		require.NoError(t, err)
	}
	require.Len(t, agents, 4)
	for i := 1; i < len(agents); i++ {
		assert.NotEqual(t, agents[i-1], agents[i], "consecutive requests must not share an identity")
	}
	assert.Subset(t, []string{"ua-one", "ua-two"}, agents)
}

func TestFetcherHonorsRobots(t *testing.T) {
	var pageHits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		pageHits.Add(1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	rotator, err := NewIdentityRotator([]string{testAgent})
	require.NoError(t, err)
	limiter := NewHostLimiter(testLimiterOptions(), nil)
	fetcher := NewFetcher(server.Client(), rotator, limiter, NewRobotsGate(server.Client()), 1<<20)

	_, err = fetcher.Fetch(context.Background(), server.URL+"/impcat/yarn.html")
	require.Error(t, err)
	assert.True(t, IsRobotsDenied(err))
	assert.Equal(t, apperrors.KindFetchPermanent, apperrors.KindOf(err))
	assert.Equal(t, int64(0), pageHits.Load(), "denied pages are never requested")
}

func TestFetcherMalformedURL(t *testing.T) {
	fetcher, _ := newTestFetcher(t, http.DefaultClient, []string{testAgent})

	for _, bad := range []string{"::broken", "proddetail/relative.html", ""} {
		_, err := fetcher.Fetch(context.Background(), bad)
		require.Error(t, err, bad)
		assert.Equal(t, apperrors.KindFetchPermanent, apperrors.KindOf(err), bad)
	}
}

func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	rotator, err := NewIdentityRotator([]string{testAgent})
	require.NoError(t, err)
	limiter := NewHostLimiter(HostLimiterOptions{BaseDelay: time.Millisecond, StartDelay: time.Millisecond, MaxDelay: time.Second}, nil)
	fetcher := NewFetcher(server.Client(), rotator, limiter, nil, 16)

	_, err = fetcher.Fetch(context.Background(), server.URL+"/p")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindFetchPermanent, apperrors.KindOf(err))
}

func TestFetcherConvertsCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte{'C', 'a', 'f', 0xE9})
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t, server.Client(), []string{testAgent})
	page, err := fetcher.Fetch(context.Background(), server.URL+"/p")
	require.NoError(t, err)
	assert.Equal(t, "Café", page.Body)
}

func TestFetcherContextCanceled(t *testing.T) {
	fetcher, _ := newTestFetcher(t, http.DefaultClient, []string{testAgent})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, "https://www.indiamart.com/proddetail/x.html")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetcherSuccessRelaxesSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	rotator, err := NewIdentityRotator([]string{testAgent})
	require.NoError(t, err)
	limiter := NewHostLimiter(HostLimiterOptions{
		BaseDelay:  time.Millisecond,
		StartDelay: 4 * time.Millisecond,
		MaxDelay:   time.Second,
	}, nil)
	fetcher := NewFetcher(server.Client(), rotator, limiter, nil, 1<<20)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	_, err = fetcher.Fetch(context.Background(), server.URL+"/p")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Millisecond, limiter.Delay(u.Host))
}
