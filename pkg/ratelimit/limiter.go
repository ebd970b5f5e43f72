package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Limiter implements a per-user sliding window rate limiter.
//
// Algorithm (executed by the store as one atomic step):
//  1. Purge window members scored before now - Window
//  2. Count the remaining members
//  3. If count >= Limit, refuse and report the pre-admission count
//  4. Otherwise insert a unique member scored at now and report count+1
//
// The Limiter holds no per-user state, so any number of instances can share
// one store.
type Limiter struct {
	store   WindowStore
	config  Config
	metrics Metrics
	logger  *slog.Logger
}

// Option configures optional Limiter collaborators.
type Option func(*Limiter)

// WithMetrics sets the metrics collector. Default: NoOpMetrics.
func WithMetrics(m Metrics) Option {
	return func(l *Limiter) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLimiter creates a limiter enforcing cfg against store.
//
// Zero values in cfg are replaced with the default policy.
func NewLimiter(store WindowStore, cfg Config, opts ...Option) *Limiter {
	cfg.ApplyDefaults()

	l := &Limiter{
		store:   store,
		config:  cfg,
		metrics: &NoOpMetrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the enforced policy.
func (l *Limiter) Config() Config {
	return l.config
}

// TryAdmit attempts to admit one action for userID at server time now.
//
// Returns:
//   - *Decision: Admitted with the post-admission count, or refused with the
//     pre-admission count
//   - error: wraps ErrStoreUnavailable when the store could not be reached or
//     ctx expired; the attempt must not be treated as admitted
func (l *Limiter) TryAdmit(ctx context.Context, userID string, now time.Time) (*Decision, error) {
	key := l.config.KeyPrefix + userID

	start := time.Now()
	admitted, count, err := l.store.CheckAndAdmit(ctx, key, now, l.config.Window, l.config.Limit)
	l.metrics.RecordCheckDuration(time.Since(start))

	if err != nil {
		l.metrics.RecordStoreError()
		l.logger.Warn("rate limit store check failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: check and admit %s: %w", ErrStoreUnavailable, key, err)
	}

	decision := &Decision{
		Key:      userID,
		Admitted: admitted,
		Count:    count,
		Limit:    l.config.Limit,
		Window:   l.config.Window,
		At:       now,
	}

	if admitted {
		l.metrics.RecordAdmitted()
	} else {
		l.metrics.RecordRejected()
		l.logger.Debug("rate limit exceeded",
			slog.String("user_id", userID),
			slog.Int("count", count),
			slog.Int("limit", l.config.Limit))
	}

	return decision, nil
}
