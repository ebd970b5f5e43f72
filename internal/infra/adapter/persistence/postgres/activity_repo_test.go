package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/infra/adapter/persistence/postgres"
	"activity-guard/internal/repository"
	"activity-guard/internal/resilience/circuitbreaker"
)

var createdAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

/* ──────────────────────────────── 1. Append ──────────────────────────────── */

func TestActivityEventRepo_Append(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	event := &entity.ActivityEvent{
		ID:        "6f1c3a2e-0000-4000-8000-000000000001",
		UserID:    "u1",
		Action:    entity.ActionClick,
		Meta:      json.RawMessage(`{"button":"buy"}`),
		IPAddress: "203.0.113.7",
		CreatedAt: createdAt,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO activity_events`)).
		WithArgs(event.ID, "u1", "click", []byte(`{"button":"buy"}`), "203.0.113.7", createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewActivityEventRepo(db)
	id, err := repo.Append(context.Background(), event)
	if err != nil {
		t.Fatalf("Append err=%v", err)
	}
	if id != event.ID {
		t.Fatalf("id = %q, want %q", id, event.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestActivityEventRepo_Append_AssignsIDAndNullMeta(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (id) DO NOTHING`)).
		WithArgs(sqlmock.AnyArg(), "u1", "login", nil, "unknown", createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := &entity.ActivityEvent{UserID: "u1", Action: entity.ActionLogin, IPAddress: "unknown", CreatedAt: createdAt}
	repo := postgres.NewActivityEventRepo(db)
	id, err := repo.Append(context.Background(), event)
	if err != nil {
		t.Fatalf("Append err=%v", err)
	}
	if id == "" || id != event.ID {
		t.Fatalf("expected generated id on event, got %q / %q", id, event.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestActivityEventRepo_Append_Error(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	dbErr := errors.New("connection reset by peer")
	mock.ExpectExec(`INSERT INTO activity_events`).WillReturnError(dbErr)

	repo := postgres.NewActivityEventRepo(db)
	_, err := repo.Append(context.Background(), &entity.ActivityEvent{UserID: "u1", Action: entity.ActionView, CreatedAt: createdAt})
	if !errors.Is(err, dbErr) {
		t.Fatalf("err = %v, want wrapped %v", err, dbErr)
	}
}

/* ──────────────────────────────── 2. Aggregate ──────────────────────────────── */

func collect(t *testing.T, repo repository.ActivityEventRepository, q repository.AggregateQuery) ([]repository.AggregateRow, error) {
	t.Helper()
	var out []repository.AggregateRow
	for row, err := range repo.Aggregate(context.Background(), q) {
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}

func TestActivityEventRepo_Aggregate_ByUser(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	since := createdAt.Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id AS group_key, COUNT(*) AS event_count FROM activity_events`)).
		WithArgs(since, createdAt, 20).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "event_count"}).
			AddRow("u1", 25).
			AddRow("u2", 20))

	repo := postgres.NewActivityEventRepo(db)
	got, err := collect(t, repo, repository.AggregateQuery{
		GroupBy: repository.GroupUser, Since: &since, Until: &createdAt, MinCount: 20,
		OrderBy: repository.OrderCountDesc,
	})
	if err != nil {
		t.Fatalf("Aggregate err=%v", err)
	}

	want := []repository.AggregateRow{{Key: "u1", Count: 25}, {Key: "u2", Count: 20}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestActivityEventRepo_Aggregate_ByMinute(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	minute := time.Date(2025, 1, 1, 11, 55, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`date_trunc('minute'`)).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "event_count"}).AddRow(minute, 4))

	repo := postgres.NewActivityEventRepo(db)
	got, err := collect(t, repo, repository.AggregateQuery{GroupBy: repository.GroupMinute})
	if err != nil {
		t.Fatalf("Aggregate err=%v", err)
	}

	want := []repository.AggregateRow{{Key: "2025-01-01T11:55:00Z", Minute: minute, Count: 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestActivityEventRepo_Aggregate_StopsEarly(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM activity_events`).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "event_count"}).
			AddRow("click", 9).AddRow("view", 3).AddRow("login", 1))

	repo := postgres.NewActivityEventRepo(db)
	seen := 0
	for _, err := range repo.Aggregate(context.Background(), repository.AggregateQuery{GroupBy: repository.GroupAction}) {
		if err != nil {
			t.Fatalf("Aggregate err=%v", err)
		}
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("seen = %d, want 1", seen)
	}
}

func TestActivityEventRepo_Aggregate_QueryError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	dbErr := errors.New("canceling statement due to statement timeout")
	mock.ExpectQuery(`FROM activity_events`).WillReturnError(dbErr)

	repo := postgres.NewActivityEventRepo(db)
	_, err := collect(t, repo, repository.AggregateQuery{})
	if !errors.Is(err, dbErr) {
		t.Fatalf("err = %v, want wrapped %v", err, dbErr)
	}
}

func TestActivityEventRepo_Aggregate_RowError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	rowErr := errors.New("unexpected EOF")
	mock.ExpectQuery(`FROM activity_events`).
		WillReturnRows(sqlmock.NewRows([]string{"group_key", "event_count"}).
			AddRow("u1", 3).AddRow("u2", 4).RowError(1, rowErr))

	repo := postgres.NewActivityEventRepo(db)
	got, err := collect(t, repo, repository.AggregateQuery{GroupBy: repository.GroupUser})
	if !errors.Is(err, rowErr) {
		t.Fatalf("err = %v, want wrapped %v", err, rowErr)
	}
	if len(got) != 1 {
		t.Fatalf("rows before error = %d, want 1", len(got))
	}
}

/* ──────────────────────────────── 3. Ping / breaker ──────────────────────────────── */

func TestActivityEventRepo_PingThroughBreaker(t *testing.T) {
	db, mock, _ := sqlmock.New(sqlmock.MonitorPingsOption(true))
	defer func() { _ = db.Close() }()

	mock.ExpectPing()

	repo := postgres.NewActivityEventRepo(circuitbreaker.NewDBCircuitBreaker(db, circuitbreaker.DBConfig(), nil))
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
