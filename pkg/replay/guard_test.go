package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-guard/pkg/clock"
)

var baseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type failingClaimStore struct{ err error }

func (s *failingClaimStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, s.err
}

type spyClaimStore struct {
	ClaimStore
	calls int
	keys  []string
}

func (s *spyClaimStore) Claim(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.calls++
	s.keys = append(s.keys, key)
	return s.ClaimStore.Claim(ctx, key, value, ttl)
}

func newTestGuard(c *clock.Mock) (*Guard, *spyClaimStore) {
	store := &spyClaimStore{ClaimStore: NewMemoryClaimStore(c)}
	return NewGuard(store, DefaultConfig(), nil), store
}

func iso(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}

func TestGuard_Check_ReplayWithinWindow(t *testing.T) {
	c := clock.NewMock(baseTime)
	g, store := newTestGuard(c)
	ctx := context.Background()

	res, err := g.Check(ctx, "u1", "click", iso(c.Now()), c.Now())
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, []string{"replay:u1:click"}, store.keys)

	c.Advance(2999 * time.Millisecond)
	res, err = g.Check(ctx, "u1", "click", iso(c.Now()), c.Now())
	require.NoError(t, err)
	assert.Equal(t, RejectedReplay, res.Outcome)

	c.Advance(time.Millisecond)
	res, err = g.Check(ctx, "u1", "click", iso(c.Now()), c.Now())
	require.NoError(t, err)
	assert.Equal(t, Allowed, res.Outcome, "claim expires after the replay window")
}

func TestGuard_Check_PairsAreIndependent(t *testing.T) {
	c := clock.NewMock(baseTime)
	g, _ := newTestGuard(c)
	ctx := context.Background()

	for _, pair := range [][2]string{{"u1", "click"}, {"u1", "view"}, {"u2", "click"}} {
		res, err := g.Check(ctx, pair[0], pair[1], iso(c.Now()), c.Now())
		require.NoError(t, err)
		assert.True(t, res.Allowed(), "%v", pair)
	}
}

func TestGuard_Check_Drift(t *testing.T) {
	tests := []struct {
		name        string
		offset      time.Duration
		wantOutcome Outcome
		wantDriftMs int64
	}{
		{name: "exact", offset: 0, wantOutcome: Allowed, wantDriftMs: 0},
		{name: "client behind at bound", offset: -30 * time.Second, wantOutcome: Allowed, wantDriftMs: 30000},
		{name: "client ahead at bound", offset: 30 * time.Second, wantOutcome: Allowed, wantDriftMs: 30000},
		{name: "client behind past bound", offset: -30001 * time.Millisecond, wantOutcome: RejectedDrift, wantDriftMs: 30001},
		{name: "client ahead past bound", offset: 45 * time.Second, wantOutcome: RejectedDrift, wantDriftMs: 45000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewMock(baseTime)
			g, _ := newTestGuard(c)

			res, err := g.Check(context.Background(), "u1", "click", iso(c.Now().Add(tt.offset)), c.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantDriftMs, res.DriftMs)
		})
	}
}

func TestGuard_Check_DriftDoesNotConsumeClaim(t *testing.T) {
	c := clock.NewMock(baseTime)
	g, store := newTestGuard(c)
	ctx := context.Background()

	res, err := g.Check(ctx, "u1", "click", iso(c.Now().Add(-time.Hour)), c.Now())
	require.NoError(t, err)
	assert.Equal(t, RejectedDrift, res.Outcome)
	assert.Equal(t, 0, store.calls)

	res, err = g.Check(ctx, "u1", "click", iso(c.Now()), c.Now())
	require.NoError(t, err)
	assert.Equal(t, Allowed, res.Outcome)
}

func TestGuard_Check_DriftRejectedEvenWhenClaimed(t *testing.T) {
	c := clock.NewMock(baseTime)
	g, _ := newTestGuard(c)
	ctx := context.Background()

	_, err := g.Check(ctx, "u1", "click", iso(c.Now()), c.Now())
	require.NoError(t, err)

	res, err := g.Check(ctx, "u1", "click", iso(c.Now().Add(time.Minute)), c.Now())
	require.NoError(t, err)
	assert.Equal(t, RejectedDrift, res.Outcome)
}

func TestGuard_Check_InvalidClientTime(t *testing.T) {
	c := clock.NewMock(baseTime)
	g, store := newTestGuard(c)

	_, err := g.Check(context.Background(), "u1", "click", "yesterday", c.Now())

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "clientTime", vErr.Field)
	assert.Equal(t, "Invalid clientTime", vErr.Error())
	assert.Equal(t, 0, store.calls)
}

func TestGuard_Check_StoreError(t *testing.T) {
	storeErr := errors.New("i/o timeout")
	g := NewGuard(&failingClaimStore{err: storeErr}, DefaultConfig(), nil)

	res, err := g.Check(context.Background(), "u1", "click", iso(baseTime), baseTime)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, Result{}, res)
}

func TestGuard_Check_ConcurrentClaimsAllowOnce(t *testing.T) {
	c := clock.NewMock(baseTime)
	g := NewGuard(NewMemoryClaimStore(c), DefaultConfig(), nil)
	ctx := context.Background()

	const attempts = 30
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.Check(ctx, "u1", "click", iso(baseTime), baseTime)
			if assert.NoError(t, err) && res.Allowed() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
}

func TestNewGuard_AppliesDefaults(t *testing.T) {
	g := NewGuard(NewMemoryClaimStore(nil), Config{}, nil)
	assert.Equal(t, DefaultConfig(), g.Config())
	assert.NoError(t, g.Config().Validate())
	assert.Error(t, Config{Window: time.Microsecond, MaxDrift: time.Second}.Validate())
	assert.Error(t, Config{Window: time.Second}.Validate())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "drift", RejectedDrift.String())
	assert.Equal(t, "replay", RejectedReplay.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
