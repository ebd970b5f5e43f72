package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreFull is returned by MemoryWindowStore when admitting a new key would
// exceed MaxKeys even after expired keys were dropped. Evicting live keys
// would undercount their windows, so the store refuses instead.
var ErrStoreFull = errors.New("memory window store is full")

// MemoryWindowStore is a thread-safe in-memory implementation of WindowStore.
//
// It is process-local: it enforces the limit only within one instance and is
// intended for tests, development, and single-instance deployments. Each key
// mirrors a Redis sorted set with an idle expiry:
//   - members are admission timestamps
//   - expiresAt is refreshed to now+window on every admission
//
// CheckAndAdmit runs under a single lock acquisition, which gives it the same
// indivisibility as the Redis script.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	maxKeys int
}

type memoryWindow struct {
	members   []time.Time
	expiresAt time.Time
}

// MemoryStoreConfig holds configuration for MemoryWindowStore.
type MemoryStoreConfig struct {
	// MaxKeys is the maximum number of live keys.
	// Default: 10000
	MaxKeys int
}

// NewMemoryWindowStore creates an empty in-memory window store.
func NewMemoryWindowStore(config MemoryStoreConfig) *MemoryWindowStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	return &MemoryWindowStore{
		windows: make(map[string]*memoryWindow),
		maxKeys: config.MaxKeys,
	}
}

// CheckAndAdmit implements WindowStore.
func (s *MemoryWindowStore) CheckAndAdmit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.windows[key]
	if exists && !now.Before(w.expiresAt) {
		// Idle expiry elapsed; the key is gone as far as callers can tell.
		delete(s.windows, key)
		w, exists = nil, false
	}

	count := 0
	if exists {
		cutoff := now.Add(-window)
		kept := w.members[:0]
		for _, ts := range w.members {
			if !ts.Before(cutoff) {
				kept = append(kept, ts)
			}
		}
		w.members = kept
		count = len(kept)
	}

	if count >= limit {
		return false, count, nil
	}

	if !exists {
		if len(s.windows) >= s.maxKeys {
			s.dropExpiredLocked(now)
			if len(s.windows) >= s.maxKeys {
				return false, count, ErrStoreFull
			}
		}
		w = &memoryWindow{members: make([]time.Time, 0, limit)}
		s.windows[key] = w
	}

	w.members = append(w.members, now)
	w.expiresAt = now.Add(window)

	return true, count + 1, nil
}

// Cleanup removes keys whose idle expiry has passed at now.
//
// Returns the number of keys removed.
func (s *MemoryWindowStore) Cleanup(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dropExpiredLocked(now), nil
}

// KeyCount returns the number of keys currently held, including keys whose
// expiry has passed but that have not been cleaned up yet.
func (s *MemoryWindowStore) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.windows)
}

// dropExpiredLocked must be called while holding s.mu.
func (s *MemoryWindowStore) dropExpiredLocked(now time.Time) int {
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}
