package postgres

import (
	"fmt"
	"strings"

	"activity-guard/internal/repository"
)

// ActivityQueryBuilder builds aggregate queries over activity_events.
// It uses PostgreSQL-specific features like date_trunc and numbered
// placeholders ($1, $2, etc.).
type ActivityQueryBuilder struct{}

// NewActivityQueryBuilder creates a new query builder instance.
func NewActivityQueryBuilder() *ActivityQueryBuilder {
	return &ActivityQueryBuilder{}
}

// BuildWhereClause builds the created_at range filter.
// Returns empty string if neither bound is set.
func (qb *ActivityQueryBuilder) BuildWhereClause(q repository.AggregateQuery) (clause string, args []interface{}) {
	var conditions []string

	if q.Since != nil {
		args = append(args, *q.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.Until != nil {
		args = append(args, *q.Until)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// BuildAggregateQuery builds a single SELECT ... GROUP BY ... HAVING ...
// ORDER BY ... LIMIT statement for q.
//
// The result always has two columns: group_key and event_count. group_key is
// TEXT for user and action groups, TIMESTAMP for minute groups and an empty
// string when q.GroupBy is GroupNone.
func (qb *ActivityQueryBuilder) BuildAggregateQuery(q repository.AggregateQuery) (query string, args []interface{}) {
	keyExpr := groupKeyExpr(q.GroupBy)
	countExpr := "COUNT(*)"
	if q.DistinctIP {
		countExpr = "COUNT(DISTINCT ip_address)"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS group_key, %s AS event_count FROM activity_events", keyExpr, countExpr)

	where, args := qb.BuildWhereClause(q)
	if where != "" {
		sb.WriteString(" " + where)
	}

	if q.GroupBy != repository.GroupNone {
		sb.WriteString(" GROUP BY group_key")
	}

	if q.MinCount > 0 {
		args = append(args, q.MinCount)
		fmt.Fprintf(&sb, " HAVING %s >= $%d", countExpr, len(args))
	}

	if q.GroupBy != repository.GroupNone {
		switch q.OrderBy {
		case repository.OrderCountDesc:
			sb.WriteString(" ORDER BY event_count DESC, group_key ASC")
		default:
			sb.WriteString(" ORDER BY group_key ASC")
		}
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	return sb.String(), args
}

func groupKeyExpr(g repository.GroupBy) string {
	switch g {
	case repository.GroupUser:
		return "user_id"
	case repository.GroupAction:
		return "action"
	case repository.GroupMinute:
		return "date_trunc('minute', created_at AT TIME ZONE 'UTC')"
	default:
		return "''"
	}
}
