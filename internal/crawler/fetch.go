package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"apatel341/fabricworker/helpers"
	apperrors "apatel341/fabricworker/pkg/errors"
)

// Fetcher retrieves pages with rotated identities, pacing each host
// through the limiter and honoring robots.txt before any request.
type Fetcher struct {
	client  *http.Client
	rotator *IdentityRotator
	limiter *HostLimiter
	robots  *RobotsGate
	maxBody int64
}

// NewFetcher wires a fetcher. robots may be nil to skip the robots
// check, and client may be nil to use a default 20 second timeout.
func NewFetcher(client *http.Client, rotator *IdentityRotator, limiter *HostLimiter, robots *RobotsGate, maxBody int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{
		client:  client,
		rotator: rotator,
		limiter: limiter,
		robots:  robots,
		maxBody: maxBody,
	}
}

// Fetch retrieves pageURL and returns its charset-normalized body.
// Outcomes feed back into the host limiter: 2xx relaxes the spacing,
// while 429, 503 and connection failures widen it.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*PageContent, error) {
	u, err := url.Parse(pageURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, apperrors.NewPermanentFetch(pageURL, 0, fmt.Errorf("malformed url %q", pageURL))
	}

	agent := f.rotator.Next()
	if f.robots != nil && !f.robots.Allowed(ctx, pageURL, agent) {
		return nil, apperrors.NewPermanentFetch(pageURL, 0, ErrRobotsDenied)
	}

	if err := f.limiter.AwaitTurn(ctx, u.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, apperrors.NewPermanentFetch(pageURL, 0, err)
	}
	helpers.DecorateRequest(req, agent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Refused or dropped connections count as an overloaded host
		f.limiter.NoteBackpressure(u.Host)
		return nil, apperrors.NewRetryableFetch(pageURL, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case retryableStatus(resp.StatusCode):
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			f.limiter.NoteBackpressure(u.Host)
		}
		return nil, apperrors.NewRetryableFetch(pageURL, resp.StatusCode, nil)
	default:
		return nil, apperrors.NewPermanentFetch(pageURL, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewRetryableFetch(pageURL, resp.StatusCode, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, apperrors.NewPermanentFetch(pageURL, resp.StatusCode, fmt.Errorf("body exceeds %d bytes", f.maxBody))
	}

	utf8Body, err := helpers.ToUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, apperrors.NewParse(pageURL, "charset conversion failed", err)
	}

	f.limiter.NoteSuccess(u.Host)
	return &PageContent{
		URL:        pageURL,
		StatusCode: resp.StatusCode,
		Body:       string(utf8Body),
	}, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsBackpressure reports whether the failure suggests the host is
// shedding load, as opposed to an isolated fault. Status zero on a
// retryable fetch means the connection itself failed.
func IsBackpressure(err error) bool {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindFetchRetryable {
		return false
	}
	return appErr.Status == http.StatusTooManyRequests ||
		appErr.Status == http.StatusServiceUnavailable ||
		appErr.Status == 0
}

// IsRobotsDenied reports whether the fetch was refused by robots.txt.
func IsRobotsDenied(err error) bool {
	return errors.Is(err, ErrRobotsDenied)
}
