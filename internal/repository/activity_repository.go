package repository

import (
	"context"
	"iter"
	"time"

	"activity-guard/internal/domain/entity"
)

// GroupBy selects the aggregation key of an AggregateQuery.
type GroupBy int

const (
	// GroupNone aggregates every matching event into one row with an empty key.
	GroupNone GroupBy = iota
	// GroupUser keys rows by user id.
	GroupUser
	// GroupAction keys rows by action.
	GroupAction
	// GroupMinute keys rows by the UTC minute of created_at.
	GroupMinute
)

// OrderBy selects the ordering of aggregate rows.
type OrderBy int

const (
	// OrderKeyAsc sorts rows by key ascending.
	OrderKeyAsc OrderBy = iota
	// OrderCountDesc sorts rows by count descending, ties broken by key ascending.
	OrderCountDesc
)

// AggregateQuery describes a read-only aggregation over activity events.
type AggregateQuery struct {
	GroupBy GroupBy

	// Since and Until bound created_at inclusively. Nil leaves the side open.
	Since *time.Time
	Until *time.Time

	// DistinctIP counts distinct ip_address values instead of events.
	DistinctIP bool

	// MinCount drops rows whose count is below it. Zero keeps every row.
	MinCount int

	OrderBy OrderBy

	// Limit caps the number of rows. Zero means unlimited.
	Limit int
}

// AggregateRow is one group of an aggregation.
// Key is the user id, action, or RFC 3339 minute depending on GroupBy.
type AggregateRow struct {
	Key    string
	Minute time.Time
	Count  int
}

// ActivityEventRepository is the append-only store of admitted events.
type ActivityEventRepository interface {
	// Append stores event and returns its id. An empty event.ID is assigned.
	// Appending the same id twice stores it once.
	Append(ctx context.Context, event *entity.ActivityEvent) (string, error)

	// Aggregate runs q and yields rows lazily. Iteration stops at the first
	// error, which is yielded with a zero row.
	Aggregate(ctx context.Context, q AggregateQuery) iter.Seq2[AggregateRow, error]

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
