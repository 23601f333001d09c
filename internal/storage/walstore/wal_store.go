// Package walstore persists ledger artifacts in a write-ahead log. Every
// save appends, so earlier snapshots stay recoverable from the segments.
package walstore

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	segmentLimit = 1000
	maxSegments  = 100
)

// WALStore is a gowal-backed Store implementation.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// New opens (or creates) a WAL-backed store in dir.
func New(dir string) (*WALStore, error) {
	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}
	return &WALStore{wal: wal}, nil
}

// Save appends the value under key at the next WAL index.
func (s *WALStore) Save(key string, value any) error {
	if s == nil || s.wal == nil {
		return errors.New("wal store is not initialized")
	}
	if key == "" {
		return errors.New("store key is required")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "marshal value for key %s", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// Load scans backwards for the latest entry saved under key.
func (s *WALStore) Load(key string, out any) (bool, error) {
	if s == nil || s.wal == nil {
		return false, errors.New("wal store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for idx := s.wal.CurrentIndex(); idx >= 1; idx-- {
		entryKey, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if entryKey != key {
			continue
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return false, errors.Wrapf(err, "decode value for key %s", key)
		}
		return true, nil
	}
	return false, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("wal store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
