// SPDX-License-Identifier: MIT

// Package cache persists the last-known-good playlist per display for
// offline fallback. It is an overwrite-only key-value store: at most one
// snapshot per display, replaced wholesale on every successful live receipt.
package cache

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/model"
)

const keyPrefix = "playlist:"

// Snapshot is a cached playlist plus its capture timestamp.
type Snapshot struct {
	Playlist   model.Playlist `json:"playlist"`
	CapturedAt time.Time      `json:"capturedAt"`
}

// Stale reports whether the snapshot is older than maxAge. A maxAge of 0
// disables staleness checking.
func (s Snapshot) Stale(maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return time.Since(s.CapturedAt) > maxAge
}

// Store is a badger-backed snapshot store.
type Store struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, logger: log.WithComponent("cache")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put overwrites the snapshot for a display. No merge, no history.
func (s *Store) Put(displayID string, playlist model.Playlist) error {
	snap := Snapshot{Playlist: playlist, CapturedAt: time.Now()}
	buf, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := []byte(keyPrefix + displayID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

// Get returns the snapshot for a display. It never fails: a missing key,
// corrupt value or storage error all read as "absent". Corrupt entries are
// dropped so the next read is clean.
func (s *Store) Get(displayID string) (Snapshot, bool) {
	key := []byte(keyPrefix + displayID)
	var snap Snapshot
	corrupt := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &snap); err != nil {
				corrupt = true
				return err
			}
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn().
				Err(err).
				Str(log.FieldDisplayID, displayID).
				Str(log.FieldEvent, "cache.read_failed").
				Msg("treating unreadable snapshot as absent")
		}
		if corrupt {
			s.drop(displayID)
		}
		return Snapshot{}, false
	}
	return snap, true
}

// Probe verifies the database accepts transactions. Used by the readiness
// checker.
func (s *Store) Probe() error {
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// Delete removes the snapshot for a display, if any.
func (s *Store) Delete(displayID string) error {
	key := []byte(keyPrefix + displayID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *Store) drop(displayID string) {
	if err := s.Delete(displayID); err != nil {
		s.logger.Warn().
			Err(err).
			Str(log.FieldDisplayID, displayID).
			Str(log.FieldEvent, "cache.drop_failed").
			Msg("failed to drop corrupt snapshot")
	}
}
