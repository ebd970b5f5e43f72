package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		data         any
		expectedBody string
	}{
		{
			name:         "struct",
			code:         http.StatusOK,
			data:         MessageBody{Message: "ok"},
			expectedBody: `{"message":"ok"}`,
		},
		{
			name:         "slice",
			code:         http.StatusOK,
			data:         []int{1, 2},
			expectedBody: `[1,2]`,
		},
		{
			name:         "nil",
			code:         http.StatusNoContent,
			data:         nil,
			expectedBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			JSON(w, tt.code, tt.data)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.expectedBody, strings.TrimSpace(w.Body.String()))
		})
	}
}

func TestJSON_EncodingError(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, make(chan int))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimestamp(t *testing.T) {
	loc := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2025, 3, 14, 21, 0, 0, 5_000_000, loc)

	assert.Equal(t, "2025-03-14T12:00:00.005Z", Timestamp(ts))
	assert.Equal(t, "2025-03-14T12:00:00.000Z", Timestamp(ts.Truncate(time.Second)))
}

func TestUnavailable(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	w := httptest.NewRecorder()
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	Unavailable(w, logger, now, 0, errors.New("dial redis://:hunter2@cache:6379: refused"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var body UnavailableBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, UnavailableBody{
		Message:    "Service temporarily unavailable",
		ServerTime: "2025-03-14T12:00:00.000Z",
		Retryable:  true,
	}, body)

	assert.NotContains(t, logs.String(), "hunter2")
	assert.Contains(t, logs.String(), "redis://:****@cache")
}

func TestSafeError(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		err      error
		wantBody string
	}{
		{
			name:     "client error passes through",
			code:     http.StatusUnauthorized,
			err:      errors.New("Invalid or expired token"),
			wantBody: `{"message":"Invalid or expired token"}`,
		},
		{
			name:     "server error is masked",
			code:     http.StatusInternalServerError,
			err:      errors.New("pq: password authentication failed"),
			wantBody: `{"message":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			SafeError(w, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), tt.code, tt.err)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(w.Body.String()))
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		SafeError(w, nil, http.StatusBadRequest, nil)
		assert.Empty(t, w.Body.String())
	})
}
