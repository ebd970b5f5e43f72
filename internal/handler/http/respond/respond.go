// Package respond provides utilities for sending HTTP responses in JSON format.
// It includes error handling with sanitization to prevent leaking sensitive information.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// MessageBody is the minimal error payload of the activity API.
type MessageBody struct {
	Message string `json:"message"`
}

// UnavailableBody is returned when a backing store failed.
type UnavailableBody struct {
	Message    string `json:"message"`
	ServerTime string `json:"serverTime"`
	Retryable  bool   `json:"retryable"`
}

// Timestamp formats t the way JavaScript's Date.toISOString does:
// UTC with exactly three fractional digits.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already sent.
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, MessageBody{Message: msg})
}

// Unavailable writes a 503 with Retry-After and logs err with secrets masked.
func Unavailable(w http.ResponseWriter, logger *slog.Logger, serverTime time.Time, retryAfter time.Duration, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("backing store unavailable",
		slog.String("error", SanitizeError(err)))

	seconds := int64(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	JSON(w, http.StatusServiceUnavailable, UnavailableBody{
		Message:    "Service temporarily unavailable",
		ServerTime: Timestamp(serverTime),
		Retryable:  true,
	})
}

// SafeError answers with a generic message for 5xx codes and logs the
// sanitised cause. Other codes return err's message as-is, so callers must
// only pass errors that were written for clients.
func SafeError(w http.ResponseWriter, logger *slog.Logger, code int, err error) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	if code >= http.StatusInternalServerError {
		logger.Error("internal server error",
			slog.String("status", http.StatusText(code)),
			slog.Int("code", code),
			slog.String("error", SanitizeError(err)))
		Message(w, code, "Internal server error")
		return
	}
	Message(w, code, err.Error())
}
