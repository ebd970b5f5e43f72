package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-guard/pkg/clock"
)

func TestMemoryClaimStore_Claim(t *testing.T) {
	c := clock.NewMock(baseTime)
	s := NewMemoryClaimStore(c)
	ctx := context.Background()

	ok, err := s.Claim(ctx, "k", "1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "k", "2", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	c.Advance(time.Second)
	ok, err = s.Claim(ctx, "k", "3", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryClaimStore_Cleanup(t *testing.T) {
	c := clock.NewMock(baseTime)
	s := NewMemoryClaimStore(c)
	ctx := context.Background()

	_, err := s.Claim(ctx, "short", "", time.Second)
	require.NoError(t, err)
	_, err = s.Claim(ctx, "long", "", time.Minute)
	require.NoError(t, err)

	c.Advance(2 * time.Second)
	removed, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryClaimStore_CancelledContext(t *testing.T) {
	s := NewMemoryClaimStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := s.Claim(ctx, "k", "", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}
