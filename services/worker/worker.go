package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"apatel341/fabricworker/config"
	"apatel341/fabricworker/internal"
	"apatel341/fabricworker/internal/crawler"
	"apatel341/fabricworker/internal/model"
	"apatel341/fabricworker/internal/transform"
	"apatel341/fabricworker/logger"
	apperrors "apatel341/fabricworker/pkg/errors"
	"apatel341/fabricworker/services/publisher"
	"apatel341/fabricworker/services/storage"
)

// Run modes accepted by Worker.Run
const (
	ModeCrawl     = "crawl"
	ModeTransform = "transform"
	ModeBoth      = "both"
)

// Worker wires the configured services into the two pipeline phases:
// crawl the catalog into the raw corpus, then consolidate the corpus
// into the processed dataset.
type Worker struct {
	cfg  *config.Config
	deps internal.Dependencies
	log  *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(cfg *config.Config, deps internal.Dependencies) *Worker {
	return &Worker{
		cfg:  cfg,
		deps: deps,
		log:  logger.ForWorker(),
	}
}

// Run executes the phases selected by mode. An empty mode runs both.
func (w *Worker) Run(ctx context.Context, mode string) error {
	switch mode {
	case ModeCrawl:
		_, err := w.RunCrawl(ctx)
		return err
	case ModeTransform:
		_, err := w.RunTransform(ctx)
		return err
	case ModeBoth, "":
		if _, err := w.RunCrawl(ctx); err != nil {
			return err
		}
		_, err := w.RunTransform(ctx)
		return err
	default:
		return apperrors.NewConfiguration(fmt.Sprintf("unknown run mode %q", mode), nil)
	}
}

// RunCrawl assembles the crawl pipeline from the configuration and
// runs it to completion. Each run appends to its own timestamped raw
// file, so repeated runs accumulate a corpus instead of overwriting.
func (w *Worker) RunCrawl(ctx context.Context) (*crawler.RunStats, error) {
	started := time.Now()

	rotator, err := crawler.NewIdentityRotator(w.cfg.UserAgents)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: w.cfg.FetchTimeout}
	limiter := crawler.NewHostLimiter(crawler.HostLimiterOptions{
		BaseDelay:  w.cfg.HostDelay,
		StartDelay: w.cfg.HostStartDelay,
		MaxDelay:   w.cfg.HostDelayMax,
		Jitter:     w.cfg.HostDelayJitter,
		Cooldown:   w.cfg.BlockCooldown,
	}, w.deps.Cache)

	var gate *crawler.RobotsGate
	if w.cfg.RespectRobots {
		gate = crawler.NewRobotsGate(client)
	}
	fetcher := crawler.NewFetcher(client, rotator, limiter, gate, w.cfg.MaxBodyBytes)

	frontier, err := crawler.NewFrontier(w.cfg.VisitedCapacity)
	if err != nil {
		return nil, err
	}

	label := started.UTC().Format("20060102_150405")
	store, err := storage.NewFileStore(w.cfg.RawDir, label)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var raw storage.RawStore = store
	if w.deps.Publisher != nil {
		raw = &publishingStore{store: store, publisher: w.deps.Publisher}
	}

	selectors := crawler.DefaultSelectors()
	sched, err := crawler.NewScheduler(crawler.SchedulerConfig{
		Fetcher:     fetcher,
		Listings:    crawler.NewListingParser(selectors),
		Details:     crawler.NewDetailParser(selectors),
		Frontier:    frontier,
		Store:       raw,
		Metrics:     w.deps.Metrics,
		Concurrency: w.cfg.Concurrency,
		MaxAttempts: w.cfg.MaxAttempts,
		RetryBase:   w.cfg.RetryBaseDelay,
	})
	if err != nil {
		return nil, err
	}

	w.log.Info().
		Str("output", store.Path()).
		Int("start_urls", len(w.cfg.StartURLs)).
		Msg("crawl starting")

	stats, err := sched.Run(ctx, w.cfg.StartURLs)
	if err != nil {
		return stats, err
	}

	if w.deps.Publisher != nil {
		if trimErr := w.deps.Publisher.TrimStreams(); trimErr != nil {
			logger.LogError("worker", trimErr, "Error trimming streams")
		}
	}

	// Skip elapsed time logging in production environment
	if w.cfg.Environment != "production" {
		w.log.Info().Dur("elapsed", time.Since(started)).Msg("crawl phase finished")
	}
	return stats, nil
}

// RunTransform consolidates every raw file under the raw directory
// into the processed CSV.
func (w *Worker) RunTransform(ctx context.Context) (*transform.Summary, error) {
	reader := storage.NewFileReader(w.cfg.RawDir)
	writer := storage.NewCSVWriter(w.cfg.ProcessedPath)

	transformer, err := transform.NewTransformer(reader, writer, transform.NewPriceParser())
	if err != nil {
		return nil, err
	}
	summary, err := transformer.Run(ctx)
	if err != nil {
		return nil, err
	}

	w.log.Info().
		Str("output", w.cfg.ProcessedPath).
		Int("rows", summary.UniqueRecords).
		Msg("transform phase finished")
	return summary, nil
}

// publishingStore mirrors every appended record onto the live stream.
// The file on disk stays the source of truth: publish failures are
// logged and never fail the crawl.
type publishingStore struct {
	store     storage.RawStore
	publisher publisher.Publisher
}

var _ storage.RawStore = (*publishingStore)(nil)

func (p *publishingStore) Append(ctx context.Context, record *model.RawProductRecord) error {
	if err := p.store.Append(ctx, record); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		logger.LogError("worker", err, "Error encoding record %s for publishing", record.ProductURL)
		return nil
	}
	if err := p.publisher.Publish(payload); err != nil {
		logger.LogError("worker", err, "Error publishing record %s", record.ProductURL)
	}
	return nil
}

func (p *publishingStore) Close() error {
	return p.store.Close()
}
