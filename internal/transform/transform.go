package transform

import (
	"context"
	"time"

	"apatel341/fabricworker/internal/model"
	"apatel341/fabricworker/logger"
	apperrors "apatel341/fabricworker/pkg/errors"
	"apatel341/fabricworker/services/storage"
)

// Summary reports what one transform pass did.
type Summary struct {
	RawRecords    int
	UniqueRecords int
	Duplicates    int
	PricesParsed  int
	Duration      time.Duration
}

// Transformer consolidates the raw crawl corpus into the processed
// dataset: deduplicate by product URL keeping the first occurrence,
// assign ids from 1 in that order, parse price text and project to the
// final schema. The pass is deterministic, so rerunning it on the same
// corpus reproduces the output byte for byte.
type Transformer struct {
	reader storage.RawReader
	writer storage.ProcessedWriter
	prices *PriceParser
	log    *logger.Logger
}

// NewTransformer wires a transformer. prices may be nil to use the
// default catalog notation.
func NewTransformer(reader storage.RawReader, writer storage.ProcessedWriter, prices *PriceParser) (*Transformer, error) {
	if reader == nil || writer == nil {
		return nil, apperrors.NewConfiguration("transformer needs a reader and a writer", nil)
	}
	if prices == nil {
		prices = NewPriceParser()
	}
	return &Transformer{
		reader: reader,
		writer: writer,
		prices: prices,
		log:    logger.ForTransformer(),
	}, nil
}

// Run executes one batch pass. The processed dataset is written all or
// nothing; a failed run leaves any previous output untouched.
func (t *Transformer) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	raw, err := t.reader.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	processed := make([]model.ProcessedProductRecord, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	pricesParsed := 0
	for i := range raw {
		record := &raw[i]
		if _, dup := seen[record.ProductURL]; dup {
			continue
		}
		seen[record.ProductURL] = struct{}{}

		price, unit, currency := t.prices.Parse(record.PriceText)
		if price != nil {
			pricesParsed++
		}
		processed = append(processed, model.ProcessedProductRecord{
			ProductID:  len(processed) + 1,
			FabricType: record.FabricType,
			Price:      price,
			Unit:       unit,
			Currency:   currency,
		})
	}

	if err := t.writer.WriteAll(ctx, processed); err != nil {
		return nil, err
	}

	summary := &Summary{
		RawRecords:    len(raw),
		UniqueRecords: len(processed),
		Duplicates:    len(raw) - len(processed),
		PricesParsed:  pricesParsed,
		Duration:      time.Since(started),
	}
	t.log.Info().
		Int("raw", summary.RawRecords).
		Int("unique", summary.UniqueRecords).
		Int("duplicates", summary.Duplicates).
		Int("prices_parsed", summary.PricesParsed).
		Dur("duration", summary.Duration).
		Msg("transform finished")
	return summary, nil
}
