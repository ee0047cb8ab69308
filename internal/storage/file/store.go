// Package file implements the order Store as a single JSON document on disk.
package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/moby/sys/atomicwriter"

	"github.com/xenking/orderlog/internal/domain/order"
)

// DefaultPath is the file name the order log has always used.
const DefaultPath = "customer-orders.json"

const (
	filePerm = 0o644
	dirPerm  = 0o755
	indent   = 2
)

var _ order.Store = (*Store)(nil)

// Store keeps the whole order collection as a pretty-printed JSON array.
// Replacing the collection writes a temporary file, syncs it and renames it
// over the old one, so readers see either the previous or the next
// collection and never a partial write.
type Store struct {
	path string
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// LoadAll reads the collection. A missing file is an empty collection; a
// file that exists but cannot be parsed, including an empty one, is a
// *order.StoreReadError.
func (s *Store) LoadAll(_ context.Context) ([]order.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []order.Record{}, nil
	}
	if err != nil {
		return nil, &order.StoreReadError{Err: err}
	}
	records, err := order.DecodeRecords(data)
	if err != nil {
		return nil, &order.StoreReadError{Err: errors.Wrapf(err, "parse %s", s.path)}
	}
	return records, nil
}

// ReplaceAll atomically overwrites the file with records.
func (s *Store) ReplaceAll(_ context.Context, records []order.Record) error {
	data := order.EncodeRecords(records, indent)
	data = append(data, '\n')
	if err := atomicwriter.WriteFile(s.path, data, filePerm); err != nil {
		return &order.StoreWriteError{Err: err}
	}
	return nil
}

// EnsureInitialized creates the parent directory and an empty collection
// when the file does not exist yet. An existing file is left untouched.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return &order.StoreWriteError{Err: err}
		}
	}
	_, err := os.Stat(s.path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return s.ReplaceAll(ctx, nil)
	default:
		return &order.StoreWriteError{Err: err}
	}
}

// Ping reports whether the directory holding the file is reachable.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return errors.Wrap(err, "stat store directory")
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", filepath.Dir(s.path))
	}
	return nil
}
