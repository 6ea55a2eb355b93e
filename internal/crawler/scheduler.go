package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"apatel341/fabricworker/logger"
	apperrors "apatel341/fabricworker/pkg/errors"
	"apatel341/fabricworker/services/storage"
)

const (
	phaseListing = "listing"
	phaseDetail  = "detail"
)

// State is the lifecycle of one scheduler run.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// RunStats summarizes one crawl run.
type RunStats struct {
	State          State
	ListingPages   int64
	DetailPages    int64
	Records        int64
	Skipped        int64
	Retries        int64
	RobotsDenied   int64
	FailuresByKind map[string]int64
	Duration       time.Duration
}

// SchedulerConfig wires a scheduler's collaborators and knobs.
type SchedulerConfig struct {
	Fetcher  *Fetcher
	Listings *ListingParser
	Details  *DetailParser
	Frontier *Frontier
	Store    storage.RawStore
	Metrics  *Metrics

	// Concurrency bounds in-flight detail fetches; listing traversal is
	// always sequential
	Concurrency int
	MaxAttempts int
	RetryBase   time.Duration
}

// Scheduler drives one crawl run: it walks listing pages in order,
// fans detail pages out to a bounded worker pool, and appends every
// parsed record to the raw store as soon as it exists.
//
// Fetch and parse failures are counted and skipped. A storage failure
// or an external cancellation aborts the run; records already written
// stay valid.
type Scheduler struct {
	fetcher  *Fetcher
	listings *ListingParser
	details  *DetailParser
	frontier *Frontier
	store    storage.RawStore
	metrics  *Metrics
	log      *logger.Logger

	concurrency int
	maxAttempts int
	retryBase   time.Duration

	state          atomic.Int32
	listingPages   atomic.Int64
	detailPages    atomic.Int64
	records        atomic.Int64
	skipped        atomic.Int64
	retries        atomic.Int64
	robotsDenied   atomic.Int64
	failuresMu     sync.Mutex
	failuresByKind map[string]int64
}

// NewScheduler validates the wiring and applies defaults: concurrency
// 4, three attempts per URL, one second base retry delay.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Fetcher == nil || cfg.Listings == nil || cfg.Details == nil {
		return nil, apperrors.NewConfiguration("scheduler needs a fetcher and both parsers", nil)
	}
	if cfg.Frontier == nil {
		return nil, apperrors.NewConfiguration("scheduler needs a frontier", nil)
	}
	if cfg.Store == nil {
		return nil, apperrors.NewConfiguration("scheduler needs a raw store", nil)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	return &Scheduler{
		fetcher:        cfg.Fetcher,
		listings:       cfg.Listings,
		details:        cfg.Details,
		frontier:       cfg.Frontier,
		store:          cfg.Store,
		metrics:        cfg.Metrics,
		log:            logger.ForScheduler(),
		concurrency:    cfg.Concurrency,
		maxAttempts:    cfg.MaxAttempts,
		retryBase:      cfg.RetryBase,
		failuresByKind: make(map[string]int64),
	}, nil
}

// State reports where the scheduler is in its lifecycle.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run crawls from the given start URLs until the frontier drains or the
// run aborts. A scheduler runs once; the returned stats are valid in
// both outcomes, since partially written raw output remains usable.
func (s *Scheduler) Run(ctx context.Context, startURLs []string) (*RunStats, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, apperrors.NewConfiguration("scheduler is single use", nil)
	}
	started := time.Now()

	for _, startURL := range startURLs {
		s.frontier.Enqueue(startURL)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	// Listing pages are walked one at a time; each one schedules its
	// detail pages onto the pool before the next listing is fetched
	for gctx.Err() == nil {
		listingURL, ok := s.frontier.Next()
		if !ok {
			break
		}
		s.processListing(gctx, g, listingURL)
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	final := StateCompleted
	if err != nil {
		final = StateAborted
	}
	s.state.Store(int32(final))

	stats := s.snapshot(final, time.Since(started))
	s.log.Info().
		Str("state", stats.State.String()).
		Int64("listing_pages", stats.ListingPages).
		Int64("detail_pages", stats.DetailPages).
		Int64("records", stats.Records).
		Int64("skipped", stats.Skipped).
		Int64("retries", stats.Retries).
		Dur("duration", stats.Duration).
		Msg("crawl finished")
	return stats, err
}

func (s *Scheduler) processListing(ctx context.Context, g *errgroup.Group, listingURL string) {
	page, err := s.fetchWithRetry(ctx, listingURL, phaseListing)
	if err != nil {
		if ctx.Err() == nil {
			s.recordFailure(listingURL, err)
		}
		return
	}
	listing, err := s.listings.Parse(page)
	if err != nil {
		s.recordFailure(listingURL, err)
		return
	}

	for _, detailURL := range listing.ProductURLs {
		if !s.frontier.Claim(detailURL) {
			continue
		}
		g.Go(func() error {
			return s.processDetail(ctx, detailURL)
		})
	}
	if listing.NextURL != "" {
		s.frontier.Enqueue(listing.NextURL)
	}
}

// processDetail returns an error only when the run must abort; skipped
// URLs are counted and swallowed.
func (s *Scheduler) processDetail(ctx context.Context, detailURL string) error {
	page, err := s.fetchWithRetry(ctx, detailURL, phaseDetail)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.recordFailure(detailURL, err)
		return nil
	}
	record, err := s.details.Parse(page)
	if err != nil {
		s.recordFailure(detailURL, err)
		return nil
	}
	if err := s.store.Append(ctx, record); err != nil {
		s.log.Error().Str("url", detailURL).Err(err).Msg("raw store append failed, aborting run")
		return err
	}
	s.records.Add(1)
	s.metrics.Records.Inc()
	return nil
}

// fetchWithRetry re-fetches retryable failures up to the attempt
// budget, doubling the pause between attempts.
func (s *Scheduler) fetchWithRetry(ctx context.Context, pageURL, phase string) (*PageContent, error) {
	delay := s.retryBase
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			s.retries.Add(1)
			s.metrics.Retries.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		started := time.Now()
		page, err := s.fetcher.Fetch(ctx, pageURL)
		if err == nil {
			s.metrics.FetchSeconds.Observe(time.Since(started).Seconds())
			s.metrics.PagesFetched.WithLabelValues(phase).Inc()
			if phase == phaseListing {
				s.listingPages.Add(1)
			} else {
				s.detailPages.Add(1)
			}
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			return nil, err
		}
		s.log.Warn().Str("url", pageURL).Int("attempt", attempt).Err(err).Msg("fetch attempt failed")
	}
	return nil, lastErr
}

func (s *Scheduler) recordFailure(pageURL string, err error) {
	kind := string(apperrors.KindOf(err))
	s.skipped.Add(1)
	s.metrics.FetchFailures.WithLabelValues(kind).Inc()
	if IsRobotsDenied(err) {
		s.robotsDenied.Add(1)
	}
	s.failuresMu.Lock()
	s.failuresByKind[kind]++
	s.failuresMu.Unlock()
	s.log.Warn().Str("url", pageURL).Str("kind", kind).Err(err).Msg("url skipped")
}

func (s *Scheduler) snapshot(state State, duration time.Duration) *RunStats {
	s.failuresMu.Lock()
	failures := make(map[string]int64, len(s.failuresByKind))
	for kind, count := range s.failuresByKind {
		failures[kind] = count
	}
	s.failuresMu.Unlock()

	return &RunStats{
		State:          state,
		ListingPages:   s.listingPages.Load(),
		DetailPages:    s.detailPages.Load(),
		Records:        s.records.Load(),
		Skipped:        s.skipped.Load(),
		Retries:        s.retries.Load(),
		RobotsDenied:   s.robotsDenied.Load(),
		FailuresByKind: failures,
		Duration:       duration,
	}
}
