// Package redisstore implements the guard's atomic stores on Redis.
//
// The sliding window runs as one Lua script (purge, count, conditional insert,
// idle expiry) and replay claims are a single SET NX PX, so every operation is
// indivisible on the server regardless of how many API instances share it.
package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"activity-guard/internal/resilience/circuitbreaker"
)

// Config holds connection settings.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// DialTimeout bounds connection establishment. Default: 5s
	DialTimeout time.Duration

	// OperationTimeout bounds each read and write. Default: 2s
	OperationTimeout time.Duration
}

// Client is an explicitly owned Redis connection shared by the window and
// claim stores. Open it at startup and Close it at shutdown.
type Client struct {
	rdb     *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// Open parses cfg.URL, connects and verifies the server with PING.
//
// Parameters:
//   - ctx: bounds the initial PING
//   - cfg: connection settings
//   - breaker: optional circuit breaker wrapping every store call (nil disables)
//   - logger: structured logger
//
// Returns:
//   - *Client: ready to use
//   - error: URL parse or connectivity failure
func Open(ctx context.Context, cfg Config, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	} else {
		opts.DialTimeout = 5 * time.Second
	}
	op := cfg.OperationTimeout
	if op <= 0 {
		op = 2 * time.Second
	}
	opts.ReadTimeout = op
	opts.WriteTimeout = op

	client := NewClient(redis.NewClient(opts), breaker, logger)
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	client.logger.Info("redis connected", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return client, nil
}

// NewClient wraps an existing go-redis client.
func NewClient(rdb *redis.Client, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{rdb: rdb, breaker: breaker, logger: logger}
}

// Ping checks connectivity. Used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// execute runs fn through the breaker when one is configured.
func (c *Client) execute(fn func() (interface{}, error)) (interface{}, error) {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}
