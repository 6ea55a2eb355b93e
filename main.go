package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"apatel341/fabricworker/config"
	"apatel341/fabricworker/internal"
	"apatel341/fabricworker/internal/crawler"
	"apatel341/fabricworker/logger"
	"apatel341/fabricworker/services/cache"
	"apatel341/fabricworker/services/publisher"
	"apatel341/fabricworker/services/worker"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Run mode comes from the first argument: crawl, transform, or both
	mode := worker.ModeBoth
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("mode", mode).
		Int("start_urls", len(cfg.StartURLs)).
		Msg("Starting application")

	// Cancel the run on SIGINT or SIGTERM; partial raw output stays usable
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, services.Metrics)
	}

	w := worker.NewWorker(cfg, internal.Dependencies{
		Cache:     services.Cache,
		Publisher: services.Publisher,
		Metrics:   services.Metrics,
	})

	if err := w.Run(ctx, mode); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Run canceled by signal")
			return
		}
		log.Error().Err(err).Msg("Worker exited with error")
		services.Cleanup()
		os.Exit(1)
	}

	log.Info().Msg("Run finished")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Metrics   *crawler.Metrics
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes all configured services. Memcache and
// Redis are both optional: without them the crawler still runs, it just
// loses cooldown persistence and live publishing.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{Metrics: crawler.NewMetrics()}

	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Using Memcache at %s", cfg.MemcacheAddr)
	}

	if cfg.RedisAddr != "" {
		redisPublisher, err := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			int(cfg.RedisStreamMaxLength),
		)
		if err != nil {
			return nil, err
		}
		services.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services, nil
}

func serveMetrics(addr string, metrics *crawler.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.LogError("metrics", err, "Metrics server stopped")
	}
}
