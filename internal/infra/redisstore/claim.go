package redisstore

import (
	"context"
	"fmt"
	"time"
)

// ClaimStore implements replay.ClaimStore with SET NX PX.
type ClaimStore struct {
	client *Client
}

// NewClaimStore creates a claim store on client.
func NewClaimStore(client *Client) *ClaimStore {
	return &ClaimStore{client: client}
}

// Claim implements replay.ClaimStore. The key and its TTL are created in one
// command, so there is no window where a claim exists without an expiry.
func (s *ClaimStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	result, err := s.client.execute(func() (interface{}, error) {
		return s.client.rdb.SetNX(ctx, key, value, ttl).Result()
	})
	if err != nil {
		return false, fmt.Errorf("set nx %s: %w", key, err)
	}
	return result.(bool), nil
}
