package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "apatel341/fabricworker/pkg/errors"
)

// Default category listing pages of the textile directory.
var defaultStartURLs = []string{
	"https://dir.indiamart.com/impcat/cotton-fabric.html",
	"https://dir.indiamart.com/impcat/polyester-fabric.html",
	"https://dir.indiamart.com/impcat/yarn.html",
	"https://dir.indiamart.com/impcat/mens-t-shirt.html",
	"https://dir.indiamart.com/impcat/sarees.html",
	"https://dir.indiamart.com/impcat/denim-jeans.html",
	"https://dir.indiamart.com/impcat/leather-fabric.html",
	"https://dir.indiamart.com/impcat/woolen-shawls.html",
}

// Default identity pool of common browser User-Agents.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/79.0.3945.130 Safari/537.36",
}

// Config represents the application configuration
type Config struct {
	// Crawl configuration
	StartURLs       []string
	UserAgents      []string
	Concurrency     int
	HostDelay       time.Duration
	HostStartDelay  time.Duration
	HostDelayJitter time.Duration
	HostDelayMax    time.Duration
	FetchTimeout    time.Duration
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	MaxBodyBytes    int64
	VisitedCapacity int
	RespectRobots   bool
	BlockCooldown   time.Duration

	// Storage configuration
	RawDir        string
	ProcessedPath string

	// Redis configuration (publisher disabled when RedisAddr is empty)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int64

	// Memcache configuration (cooldown cache disabled when empty)
	MemcacheAddr string

	// Metrics endpoint (disabled when empty)
	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		StartURLs:       getEnvList("START_URLS", defaultStartURLs),
		UserAgents:      getEnvList("USER_AGENTS", defaultUserAgents),
		Concurrency:     getEnvInt("CRAWL_CONCURRENCY", 4),
		HostDelay:       getEnvMillis("HOST_DELAY_MS", 2000),
		HostStartDelay:  getEnvMillis("HOST_START_DELAY_MS", 5000),
		HostDelayJitter: getEnvMillis("HOST_DELAY_JITTER_MS", 1000),
		HostDelayMax:    getEnvMillis("HOST_DELAY_MAX_MS", 60000),
		FetchTimeout:    time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		MaxAttempts:     getEnvInt("FETCH_MAX_ATTEMPTS", 3),
		RetryBaseDelay:  getEnvMillis("RETRY_BASE_DELAY_MS", 1000),
		MaxBodyBytes:    int64(getEnvInt("MAX_BODY_BYTES", 10*1024*1024)),
		VisitedCapacity: getEnvInt("VISITED_CAPACITY", 100000),
		RespectRobots:   getEnvBool("RESPECT_ROBOTS", true),
		BlockCooldown:   time.Duration(getEnvInt("BLOCK_SECONDS", 300)) * time.Second,

		RawDir:        getEnv("RAW_DIR", "data/raw"),
		ProcessedPath: getEnv("PROCESSED_PATH", "data/processed/indiamart_processed_data.csv"),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "fabric_products"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: int64(getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000)),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),
		MetricsAddr:  getEnv("METRICS_ADDR", ""),

		Environment: getEnv("FABRIC_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return apperrors.NewConfiguration("at least one start URL is required", nil)
	}
	for _, raw := range c.StartURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return apperrors.NewConfiguration("invalid start URL "+raw, err)
		}
		if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return apperrors.NewConfiguration("start URL must be absolute http(s): "+raw, nil)
		}
	}
	if len(c.UserAgents) == 0 {
		return apperrors.NewConfiguration("identity pool must contain at least one entry", nil)
	}
	if c.Concurrency < 1 {
		return apperrors.NewConfiguration("CRAWL_CONCURRENCY must be at least 1", nil)
	}
	if c.HostDelay < 0 || c.HostStartDelay < 0 || c.HostDelayJitter < 0 {
		return apperrors.NewConfiguration("host delays must not be negative", nil)
	}
	if c.HostDelayMax < c.HostDelay {
		return apperrors.NewConfiguration("HOST_DELAY_MAX_MS must be at least HOST_DELAY_MS", nil)
	}
	if c.FetchTimeout <= 0 {
		return apperrors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.MaxAttempts < 1 {
		return apperrors.NewConfiguration("FETCH_MAX_ATTEMPTS must be at least 1", nil)
	}
	if c.MaxBodyBytes <= 0 {
		return apperrors.NewConfiguration("MAX_BODY_BYTES must be positive", nil)
	}
	if c.VisitedCapacity < 1 {
		return apperrors.NewConfiguration("VISITED_CAPACITY must be at least 1", nil)
	}
	if c.RawDir == "" {
		return apperrors.NewConfiguration("RAW_DIR must not be empty", nil)
	}
	if c.ProcessedPath == "" {
		return apperrors.NewConfiguration("PROCESSED_PATH must not be empty", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return apperrors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvMillis retrieves a millisecond duration environment variable
func getEnvMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Millisecond
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvList retrieves a pipe-separated environment variable. User-Agent
// strings contain commas, so the separator is "|".
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, "|") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
