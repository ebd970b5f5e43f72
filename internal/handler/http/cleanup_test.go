package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"activity-guard/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStoreCleanup(t *testing.T) {
	store := ratelimit.NewMemoryWindowStore(ratelimit.MemoryStoreConfig{})
	past := time.Now().Add(-time.Hour)
	_, _, err := store.CheckAndAdmit(context.Background(), "rate:u1", past, 10*time.Second, 5)
	require.NoError(t, err)

	var failures atomic.Int32
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		StartStoreCleanup(ctx, 10*time.Millisecond, slog.New(slog.NewTextHandler(&buf, nil)),
			CleanupTask{Name: "window", Run: func(ctx context.Context) (int, error) {
				return store.Cleanup(ctx, time.Now())
			}},
			CleanupTask{Name: "broken", Run: func(context.Context) (int, error) {
				failures.Add(1)
				return 0, errors.New("boom")
			}},
		)
	}()

	require.Eventually(t, func() bool { return store.KeyCount() == 0 && failures.Load() > 0 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
	assert.Contains(t, buf.String(), "store cleanup stopped")
}
