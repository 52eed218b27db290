// Package store keeps HTTP cache metadata for fetched calendar sources in a
// bbolt database.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const rootBucket = "fetch-cache"

// ErrNotFound is returned by Get when no entry exists for a URL.
var ErrNotFound = errors.New("cache entry not found")

// Entry holds the validators of the last successful download of a URL.
type Entry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store is a bbolt-backed map of URL to Entry.
type Store struct {
	db   *bolt.DB
	root []byte
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open db %s: %w", path, err)
	}

	s := &Store{db: db, root: []byte(rootBucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.root); err != nil {
			return fmt.Errorf("unable to create root bucket %s: %w", s.root, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the entry stored for url, or ErrNotFound.
func (s *Store) Get(url string) (Entry, error) {
	var e Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.root).Get(key(url))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &e)
	})
	return e, err
}

// Put stores e under e.URL, stamping UpdatedAt.
func (s *Store) Put(e Entry) error {
	if e.URL == "" {
		return errors.New("cache entry has no url")
	}
	e.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.root).Put(key(e.URL), raw)
	})
}

func key(url string) []byte {
	sum := sha256.Sum256([]byte(url))
	return []byte(hex.EncodeToString(sum[:]))
}
