// Package cachestore persists named caches of response snapshots on a local
// bbolt file. Each namespace owns its entries; version bumps create fresh
// namespaces and the obsolete ones are removed by CleanupObsolete. Pure
// storage, no network behavior.
package cachestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Snapshot is one cached response: enough to rebuild an http.Response for a
// caller that cannot reach the network.
type Snapshot struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Store is a collection of namespaces backed by a single bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the cache file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Namespace returns a handle for one named cache, creating it if needed.
func (s *Store) Namespace(name string) (*Handle, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create namespace %q: %w", name, err)
	}
	return &Handle{db: s.db, name: name}, nil
}

// ListNamespaces returns the names of every namespace in the store.
func (s *Store) ListNamespaces() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DeleteNamespace removes one namespace and all of its entries.
func (s *Store) DeleteNamespace(name string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(name))
	})
	if errors.Is(err, bolt.ErrBucketNotFound) {
		return nil
	}
	return err
}

// CleanupObsolete deletes every namespace not present in allowList. It
// returns only after all deletions are committed, so activation of a new
// cache layout can safely wait on it. A crash mid-cleanup leaves extra
// namespaces behind, never a partially usable one.
func (s *Store) CleanupObsolete(allowList []string) error {
	allowed := make(map[string]bool, len(allowList))
	for _, name := range allowList {
		allowed[name] = true
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		var obsolete [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if !allowed[string(name)] {
				obsolete = append(obsolete, append([]byte(nil), name...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, name := range obsolete {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("failed to delete namespace %q: %w", name, err)
			}
		}
		return nil
	})
}

// Handle reads and writes entries of one namespace.
type Handle struct {
	db   *bolt.DB
	name string
}

func (h *Handle) Name() string {
	return h.name
}

// Put stores a snapshot under the request key, replacing any previous entry.
func (h *Handle) Put(requestKey string, snap *Snapshot) error {
	if snap.StoredAt.IsZero() {
		snap.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(h.name))
		if b == nil {
			return fmt.Errorf("namespace %q deleted", h.name)
		}
		return b.Put([]byte(requestKey), data)
	})
}

// Match returns the stored snapshot for the request key, or false when the
// namespace has no entry for it.
func (h *Handle) Match(requestKey string) (*Snapshot, bool) {
	var snap *Snapshot
	_ = h.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(h.name))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(requestKey))
		if data == nil {
			return nil
		}
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		snap = &s
		return nil
	})
	return snap, snap != nil
}
