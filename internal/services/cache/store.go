// Package cache implements an ephemeral, run-scoped response cache:
// opened inside one ticker's working directory and destroyed along
// with it.
package cache

import (
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// Store is a badger-backed key/value cache scoped to one ticker run.
type Store struct {
	db *badger.DB
}

// Open creates (or reopens) the cache database at <workDir>/.cache.
func Open(workDir string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Join(workDir, ".cache")).WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open response cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the cached value for key, if present.
func (s *Store) Get(key string) (string, bool) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false
	}
	return value, true
}

// Set stores value under key for the remainder of the run.
func (s *Store) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

// Close releases the underlying database handle. The caller is
// responsible for removing the working directory, which deletes the
// on-disk cache files along with everything else in the run.
func (s *Store) Close() error {
	return s.db.Close()
}
