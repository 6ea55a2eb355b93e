package internal

import (
	"apatel341/fabricworker/internal/crawler"
	"apatel341/fabricworker/services/cache"
	"apatel341/fabricworker/services/publisher"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Metrics   *crawler.Metrics
}
