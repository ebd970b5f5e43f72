// Package http provides the HTTP edge of the activity guard: health probes,
// request logging, panic recovery, metrics and request timeouts. Activity
// routes live in the activity subpackage.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"activity-guard/internal/handler/http/respond"

	"github.com/sony/gobreaker"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStater exposes a circuit breaker's state.
type BreakerStater interface {
	Name() string
	State() gobreaker.State
}

// Dependency is a named backing store checked by the health probes.
// A nil Pinger means the in-memory fallback is in use.
type Dependency struct {
	Name    string
	Pinger  Pinger
	Breaker BreakerStater
}

// HealthResponse is the JSON body of /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one dependency check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthHandler reports the state of every dependency. It answers 503 when
// any dependency is unreachable. An open breaker is reported as degraded.
type HealthHandler struct {
	Dependencies []Dependency
	Version      string
	Logger       *slog.Logger
	Now          func() time.Time
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus, len(h.Dependencies))
	status := StatusHealthy
	for _, dep := range h.Dependencies {
		check := checkDependency(ctx, dep)
		checks[dep.Name] = check
		switch {
		case check.Status == StatusUnhealthy:
			status = StatusUnhealthy
		case check.Status == StatusDegraded && status == StatusHealthy:
			status = StatusDegraded
		}
	}

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("health check failed", slog.Any("checks", checks))
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: respond.Timestamp(now()),
		Checks:    checks,
		Version:   h.Version,
	})
}

func checkDependency(ctx context.Context, dep Dependency) CheckStatus {
	if dep.Pinger == nil {
		return CheckStatus{Status: StatusHealthy, Message: "in-memory"}
	}
	if err := dep.Pinger.Ping(ctx); err != nil {
		return CheckStatus{Status: StatusUnhealthy, Message: respond.SanitizeError(err)}
	}

	check := CheckStatus{Status: StatusHealthy}
	if dep.Breaker != nil {
		state := dep.Breaker.State()
		check.Details = map[string]any{"circuit_breaker": state.String()}
		if state != gobreaker.StateClosed {
			check.Status = StatusDegraded
			check.Message = "circuit breaker " + dep.Breaker.Name() + " is " + state.String()
		}
	}
	return check
}

// ReadyHandler answers 200 "ready" once every configured dependency responds.
type ReadyHandler struct {
	Dependencies []Dependency
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, dep := range h.Dependencies {
		if dep.Pinger == nil {
			continue
		}
		if err := dep.Pinger.Ping(ctx); err != nil {
			http.Error(w, dep.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LiveHandler always answers 200 "alive".
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
