package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"apatel341/fabricworker/internal/model"
	apperrors "apatel341/fabricworker/pkg/errors"
)

var _ ProcessedWriter = (*CSVWriter)(nil)

var processedHeader = []string{"product_id", "fabric_type", "price", "unit", "currency"}

// CSVWriter writes processed records to a single CSV file. Rows are
// staged in a temp file and renamed into place, so a failed run never
// leaves a partial dataset behind.
type CSVWriter struct {
	path string
}

// NewCSVWriter creates a writer targeting path.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// WriteAll replaces the target file with the given records.
func (w *CSVWriter) WriteAll(ctx context.Context, records []model.ProcessedProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorage("create processed directory", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return apperrors.NewStorage("create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	// Byte order mark keeps spreadsheet tools from mangling the rupee sign.
	if _, err := tmp.WriteString("\uFEFF"); err != nil {
		return apperrors.NewStorage("write byte order mark", err)
	}

	cw := csv.NewWriter(tmp)
	if err := cw.Write(processedHeader); err != nil {
		return apperrors.NewStorage("write header", err)
	}
	for i := range records {
		if err := cw.Write(processedRow(&records[i])); err != nil {
			return apperrors.NewStorage("write row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.NewStorage("flush rows", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorage("close temp file", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorage("replace processed file", err)
	}
	committed = true
	return nil
}

func processedRow(record *model.ProcessedProductRecord) []string {
	row := []string{strconv.Itoa(record.ProductID), record.FabricType, "", "", ""}
	if record.Price != nil {
		row[2] = strconv.FormatFloat(*record.Price, 'f', -1, 64)
	}
	if record.Unit != nil {
		row[3] = *record.Unit
	}
	if record.Currency != nil {
		row[4] = *record.Currency
	}
	return row
}
