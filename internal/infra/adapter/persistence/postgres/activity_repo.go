package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/repository"
)

// DBTX is the subset of *sql.DB used by the repository. Both *sql.DB and
// *circuitbreaker.DBCircuitBreaker satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

type ActivityEventRepo struct {
	db DBTX
	qb *ActivityQueryBuilder
}

func NewActivityEventRepo(db DBTX) repository.ActivityEventRepository {
	return &ActivityEventRepo{db: db, qb: NewActivityQueryBuilder()}
}

func (repo *ActivityEventRepo) Append(ctx context.Context, event *entity.ActivityEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
INSERT INTO activity_events (id, user_id, action, meta, ip_address, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`

	var meta interface{}
	if len(event.Meta) > 0 {
		meta = []byte(event.Meta)
	}

	if _, err := repo.db.ExecContext(ctx, query,
		event.ID, event.UserID, string(event.Action), meta, event.IPAddress, event.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("Append: %w", err)
	}
	return event.ID, nil
}

func (repo *ActivityEventRepo) Aggregate(ctx context.Context, q repository.AggregateQuery) iter.Seq2[repository.AggregateRow, error] {
	return func(yield func(repository.AggregateRow, error) bool) {
		query, args := repo.qb.BuildAggregateQuery(q)

		rows, err := repo.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(repository.AggregateRow{}, fmt.Errorf("Aggregate: %w", err))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			row, err := scanAggregateRow(rows, q.GroupBy)
			if err != nil {
				yield(repository.AggregateRow{}, fmt.Errorf("Aggregate: %w", err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(repository.AggregateRow{}, fmt.Errorf("Aggregate: %w", err))
		}
	}
}

func (repo *ActivityEventRepo) Ping(ctx context.Context) error {
	return repo.db.PingContext(ctx)
}

// scanAggregateRow scans group_key and event_count. Minute keys are scanned
// as timestamps and rendered as RFC 3339 in UTC.
func scanAggregateRow(rows *sql.Rows, g repository.GroupBy) (repository.AggregateRow, error) {
	var row repository.AggregateRow

	if g == repository.GroupMinute {
		var minute time.Time
		if err := rows.Scan(&minute, &row.Count); err != nil {
			return row, err
		}
		// timestamp without time zone carries UTC wall-clock values
		row.Minute = time.Date(minute.Year(), minute.Month(), minute.Day(),
			minute.Hour(), minute.Minute(), 0, 0, time.UTC)
		row.Key = row.Minute.Format(time.RFC3339)
		return row, nil
	}

	if err := rows.Scan(&row.Key, &row.Count); err != nil {
		return row, err
	}
	return row, nil
}
