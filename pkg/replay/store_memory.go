package replay

import (
	"context"
	"sync"
	"time"

	"activity-guard/pkg/clock"
)

// MemoryClaimStore is a process-local ClaimStore for tests and
// single-instance deployments. Expiry is measured against its Clock.
type MemoryClaimStore struct {
	mu     sync.Mutex
	claims map[string]time.Time
	clock  clock.Clock
}

// NewMemoryClaimStore creates an empty store. A nil clock uses system time.
func NewMemoryClaimStore(c clock.Clock) *MemoryClaimStore {
	if c == nil {
		c = &clock.SystemClock{}
	}
	return &MemoryClaimStore{
		claims: make(map[string]time.Time),
		clock:  c,
	}
}

// Claim implements ClaimStore.
func (s *MemoryClaimStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, ok := s.claims[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}

// Cleanup removes expired claims and returns how many were removed.
func (s *MemoryClaimStore) Cleanup(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, expiresAt := range s.claims {
		if !now.Before(expiresAt) {
			delete(s.claims, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of claims held, expired or not.
func (s *MemoryClaimStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}
