// Package memory provides in-process implementations of repository
// interfaces for development and tests. State is lost on restart and is not
// shared between instances.
package memory

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/repository"
)

type ActivityEventRepo struct {
	mu     sync.RWMutex
	events []entity.ActivityEvent
	ids    map[string]struct{}
}

func NewActivityEventRepo() *ActivityEventRepo {
	return &ActivityEventRepo{ids: make(map[string]struct{})}
}

func (repo *ActivityEventRepo) Append(ctx context.Context, event *entity.ActivityEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	if _, dup := repo.ids[event.ID]; dup {
		return event.ID, nil
	}
	stored := *event
	stored.Meta = slices.Clone(event.Meta)
	repo.events = append(repo.events, stored)
	repo.ids[event.ID] = struct{}{}
	return event.ID, nil
}

// Aggregate computes the whole result under a read lock and then yields it,
// so a slow consumer never blocks writers.
func (repo *ActivityEventRepo) Aggregate(ctx context.Context, q repository.AggregateQuery) iter.Seq2[repository.AggregateRow, error] {
	return func(yield func(repository.AggregateRow, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(repository.AggregateRow{}, err)
			return
		}

		for _, row := range repo.aggregate(q) {
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (repo *ActivityEventRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored events.
func (repo *ActivityEventRepo) Len() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return len(repo.events)
}

type group struct {
	minute time.Time
	events int
	ips    map[string]struct{}
}

func (repo *ActivityEventRepo) aggregate(q repository.AggregateQuery) []repository.AggregateRow {
	groups := make(map[string]*group)
	if q.GroupBy == repository.GroupNone {
		groups[""] = &group{ips: make(map[string]struct{})}
	}

	repo.mu.RLock()
	for i := range repo.events {
		e := &repo.events[i]
		if q.Since != nil && e.CreatedAt.Before(*q.Since) {
			continue
		}
		if q.Until != nil && e.CreatedAt.After(*q.Until) {
			continue
		}

		key, minute := groupKey(e, q.GroupBy)
		g, ok := groups[key]
		if !ok {
			g = &group{minute: minute, ips: make(map[string]struct{})}
			groups[key] = g
		}
		g.events++
		g.ips[e.IPAddress] = struct{}{}
	}
	repo.mu.RUnlock()

	rows := make([]repository.AggregateRow, 0, len(groups))
	for key, g := range groups {
		count := g.events
		if q.DistinctIP {
			count = len(g.ips)
		}
		if count < q.MinCount {
			continue
		}
		rows = append(rows, repository.AggregateRow{Key: key, Minute: g.minute, Count: count})
	}

	slices.SortFunc(rows, func(a, b repository.AggregateRow) int {
		if q.OrderBy == repository.OrderCountDesc {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Key, b.Key)
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows
}

func groupKey(e *entity.ActivityEvent, g repository.GroupBy) (string, time.Time) {
	switch g {
	case repository.GroupUser:
		return e.UserID, time.Time{}
	case repository.GroupAction:
		return string(e.Action), time.Time{}
	case repository.GroupMinute:
		m := e.CreatedAt.UTC().Truncate(time.Minute)
		return m.Format(time.RFC3339), m
	default:
		return "", time.Time{}
	}
}
