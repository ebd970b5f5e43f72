package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fakeBreaker struct {
	state gobreaker.State
}

func (b fakeBreaker) Name() string            { return "redis" }
func (b fakeBreaker) State() gobreaker.State { return b.state }

var (
	pingOK   = pingFunc(func(context.Context) error { return nil })
	pingFail = pingFunc(func(context.Context) error {
		return errors.New("dial tcp: connect to postgres://app:hunter2@db:5432/app refused")
	})
)

func TestHealthHandler(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		deps       []Dependency
		wantCode   int
		wantStatus string
		check      func(t *testing.T, checks map[string]CheckStatus)
	}{
		{
			name:       "all in-memory",
			deps:       []Dependency{{Name: "database"}, {Name: "redis"}},
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
			check: func(t *testing.T, checks map[string]CheckStatus) {
				assert.Equal(t, "in-memory", checks["database"].Message)
			},
		},
		{
			name: "all reachable",
			deps: []Dependency{
				{Name: "database", Pinger: pingOK},
				{Name: "redis", Pinger: pingOK, Breaker: fakeBreaker{gobreaker.StateClosed}},
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
			check: func(t *testing.T, checks map[string]CheckStatus) {
				assert.Equal(t, "closed", checks["redis"].Details["circuit_breaker"])
			},
		},
		{
			name:       "half-open breaker is degraded",
			deps:       []Dependency{{Name: "redis", Pinger: pingOK, Breaker: fakeBreaker{gobreaker.StateHalfOpen}}},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name:       "unreachable database",
			deps:       []Dependency{{Name: "database", Pinger: pingFail}, {Name: "redis", Pinger: pingOK}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
			check: func(t *testing.T, checks map[string]CheckStatus) {
				assert.Equal(t, StatusUnhealthy, checks["database"].Status)
				assert.NotContains(t, checks["database"].Message, "hunter2")
				assert.Equal(t, StatusHealthy, checks["redis"].Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &HealthHandler{
				Dependencies: tt.deps,
				Version:      "test",
				Now:          func() time.Time { return fixed },
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "2025-03-14T12:00:00.000Z", resp.Timestamp)
			assert.Equal(t, "test", resp.Version)
			if tt.check != nil {
				tt.check(t, resp.Checks)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name     string
		deps     []Dependency
		wantCode int
		wantBody string
	}{
		{name: "no deps", wantCode: http.StatusOK, wantBody: "ready"},
		{name: "in-memory", deps: []Dependency{{Name: "database"}}, wantCode: http.StatusOK, wantBody: "ready"},
		{name: "reachable", deps: []Dependency{{Name: "database", Pinger: pingOK}}, wantCode: http.StatusOK, wantBody: "ready"},
		{name: "unreachable", deps: []Dependency{{Name: "redis", Pinger: pingFail}}, wantCode: http.StatusServiceUnavailable, wantBody: "redis not ready\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			(&ReadyHandler{Dependencies: tt.deps}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	(&LiveHandler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())
}
