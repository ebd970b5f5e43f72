package replay

import (
	"strings"
	"time"
)

// ValidationError reports a client timestamp that could not be parsed.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// clientTimeLayouts are tried in order. Layouts without a zone are read as UTC.
var clientTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseClientTime parses an ISO-8601 timestamp as browsers produce it
// (Date.prototype.toISOString), plus the looser forms they accept: missing
// zone, missing seconds, date only and RFC 1123.
func ParseClientTime(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" {
		for _, layout := range clientTimeLayouts {
			if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, &ValidationError{
		Field:   "clientTime",
		Value:   s,
		Message: "Invalid clientTime",
	}
}
