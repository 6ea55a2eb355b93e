package storage

import (
	"context"

	"apatel341/fabricworker/internal/model"
)

// RawStore persists raw product records as they are scraped. Append must
// be safe for concurrent use.
type RawStore interface {
	// Append writes one record durably before returning
	Append(ctx context.Context, record *model.RawProductRecord) error

	// Close flushes and releases the underlying sink
	Close() error
}

// RawReader loads previously persisted raw records for processing.
type RawReader interface {
	ReadAll(ctx context.Context) ([]model.RawProductRecord, error)
}

// ProcessedWriter emits the final processed dataset. Implementations
// write all records or none.
type ProcessedWriter interface {
	WriteAll(ctx context.Context, records []model.ProcessedProductRecord) error
}
