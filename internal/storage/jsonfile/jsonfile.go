// Package jsonfile persists the ledger as a single indented JSON array.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dvloznov/ledger/internal/ledger"
)

// File is a ledger.Persister backed by one JSON file.
type File struct {
	path string
}

// New returns a persister for the file at path. The file is created on first save.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Load implements ledger.Persister. A missing file yields no records.
func (f *File) Load(ctx context.Context) ([]ledger.Record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", f.path, err)
	}
	return Decode(data)
}

// Save implements ledger.Persister. The file is replaced atomically.
func (f *File) Save(ctx context.Context, records []ledger.Record) error {
	data, err := Encode(records)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("Save: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("Save: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("Save: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("Save: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("Save: replace %s: %w", f.path, err)
	}

	return nil
}

// Encode renders records in the on-disk layout.
func Encode(records []ledger.Record) ([]byte, error) {
	if records == nil {
		records = []ledger.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses the on-disk layout.
func Decode(data []byte) ([]ledger.Record, error) {
	var records []ledger.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

var _ ledger.Persister = (*File)(nil)
