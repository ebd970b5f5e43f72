// Package activity exposes the activity use cases over HTTP.
//
// Every route expects an authenticated user id and a resolved client IP in
// the request context; auth.Middleware and middleware.ClientIP provide them.
package activity

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"activity-guard/internal/domain/entity"
	actUC "activity-guard/internal/usecase/activity"
)

// Service is the part of the activity use case the handlers call.
type Service interface {
	Now() time.Time
	Record(ctx context.Context, in actUC.RecordInput) (*actUC.RecordResult, error)
	CheckReplay(ctx context.Context, in actUC.ReplayInput) (*actUC.ReplayResult, error)
	Stats(ctx context.Context) (*actUC.Stats, error)
}

// SuspiciousFinder evaluates the anomaly rules at a point in time.
type SuspiciousFinder interface {
	FindSuspicious(ctx context.Context, now time.Time) ([]entity.SuspiciousFlag, error)
}

// Register mounts the activity routes on mux.
func Register(mux *http.ServeMux, svc Service, finder SuspiciousFinder, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	mux.Handle("POST /activity", RecordHandler{Svc: svc, Logger: logger})
	mux.Handle("POST /activity/replay-check", ReplayCheckHandler{Svc: svc, Logger: logger})
	mux.Handle("GET /activity/stats", StatsHandler{Svc: svc, Logger: logger})
	mux.Handle("GET /activity/suspicious", SuspiciousHandler{Finder: finder, Clock: svc, Logger: logger})
}
