package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"apatel341/fabricworker/internal/model"
	apperrors "apatel341/fabricworker/pkg/errors"
)

// maxLineBytes bounds a single raw record line. Records carry image URL
// lists and long descriptions, so the default scanner limit is too small.
const maxLineBytes = 4 << 20

var _ RawStore = (*FileStore)(nil)
var _ RawReader = (*FileReader)(nil)

// FileStore appends raw product records to a JSON Lines file, one
// marshaled record per line. Each line goes out in a single Write call
// so concurrent appends never interleave.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewFileStore opens (or creates) the run's raw file under dir. The
// label, typically a run timestamp, keeps files from separate runs apart.
func NewFileStore(dir, label string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorage("create raw directory", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("textiles_%s.jsonl", label))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, apperrors.NewStorage("open raw file", err)
	}
	return &FileStore{file: file, path: path}, nil
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string {
	return s.path
}

// Append marshals the record and writes it as one line.
func (s *FileStore) Append(ctx context.Context, record *model.RawProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return apperrors.NewStorage("encode record", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return apperrors.NewStorage("append record", os.ErrClosed)
	}
	if _, err := s.file.Write(data); err != nil {
		return apperrors.NewStorage("append record", err)
	}
	return nil
}

// Close releases the underlying file. Further appends fail.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return apperrors.NewStorage("close raw file", err)
	}
	return nil
}

// FileReader loads every raw record found in a directory of JSON Lines
// files, walking the files in lexical order so earlier runs come first.
type FileReader struct {
	dir string
}

// NewFileReader creates a reader over dir.
func NewFileReader(dir string) *FileReader {
	return &FileReader{dir: dir}
}

// ReadAll returns all records from every *.jsonl file under the
// reader's directory.
func (r *FileReader) ReadAll(ctx context.Context) ([]model.RawProductRecord, error) {
	paths, err := filepath.Glob(filepath.Join(r.dir, "*.jsonl"))
	if err != nil {
		return nil, apperrors.NewStorage("list raw files", err)
	}
	sort.Strings(paths)

	var records []model.RawProductRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.readFile(path, &records); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (r *FileReader) readFile(path string, records *[]model.RawProductRecord) error {
	file, err := os.Open(path)
	if err != nil {
		return apperrors.NewStorage("open raw file", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var record model.RawProductRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return apperrors.NewStorage(fmt.Sprintf("decode %s line %d", filepath.Base(path), line), err)
		}
		*records = append(*records, record)
	}
	if err := scanner.Err(); err != nil {
		return apperrors.NewStorage("read raw file", err)
	}
	return nil
}
