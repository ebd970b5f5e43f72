package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxMetaBytes bounds the encoded size of ActivityEvent.Meta.
const MaxMetaBytes = 16 * 1024

// UnknownIP is recorded when no client address could be determined.
const UnknownIP = "unknown"

// ActivityEvent is an admitted user action.
// Events are append-only: they are created once by the event store and never
// updated. CreatedAt is server time.
type ActivityEvent struct {
	ID        string
	UserID    string
	Action    Action
	Meta      json.RawMessage
	IPAddress string
	CreatedAt time.Time
}

// Validate checks the fields an event must carry before it is appended.
func (e *ActivityEvent) Validate() error {
	if e.UserID == "" {
		return &ValidationError{Field: "userId", Message: "userId is required"}
	}
	if _, err := ParseAction(string(e.Action)); err != nil {
		return err
	}
	if err := ValidateMeta(e.Meta); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		return &ValidationError{Field: "createdAt", Message: "createdAt is required"}
	}
	return nil
}

// ValidateMeta accepts an absent payload or any well-formed JSON value up to
// MaxMetaBytes.
func ValidateMeta(meta json.RawMessage) error {
	if len(meta) == 0 {
		return nil
	}
	if len(meta) > MaxMetaBytes {
		return &ValidationError{
			Field:   "meta",
			Message: fmt.Sprintf("meta must not exceed %d bytes", MaxMetaBytes),
		}
	}
	if !json.Valid(meta) {
		return &ValidationError{Field: "meta", Message: "meta must be valid JSON"}
	}
	return nil
}
