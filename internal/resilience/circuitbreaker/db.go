package circuitbreaker

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/sony/gobreaker"
)

// DBCircuitBreaker puts every call to a *sql.DB behind a circuit breaker.
// It satisfies the repository's DBTX interface.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// NewDBCircuitBreaker wraps db. A nil logger uses slog.Default.
func NewDBCircuitBreaker(db *sql.DB, cfg Config, logger *slog.Logger) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg, logger), db: db}
}

// QueryContext returns gobreaker.ErrOpenState without touching the database
// while the circuit is open.
func (d *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := d.cb.Do(func() error {
		var err error
		rows, err = d.db.QueryContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	err := d.cb.Do(func() error {
		var err error
		res, err = d.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PingContext reports the database as unavailable without dialing it while
// the circuit is open.
func (d *DBCircuitBreaker) PingContext(ctx context.Context) error {
	return d.cb.Do(func() error { return d.db.PingContext(ctx) })
}

func (d *DBCircuitBreaker) State() gobreaker.State { return d.cb.State() }

func (d *DBCircuitBreaker) Name() string { return d.cb.Name() }

func (d *DBCircuitBreaker) IsOpen() bool { return d.cb.IsOpen() }
