package respond

import (
	"regexp"
)

var (
	// Credentials inside connection URLs (postgres://, redis://).
	urlPasswordPattern = regexp.MustCompile(`://([^:/@\s]*):([^@\s]+)@`)

	// Compact JWS tokens: three base64url segments, the first starting with "eyJ".
	jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)

	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[^\s"]+`)
)

// SanitizeError returns err's message with credentials and tokens masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = urlPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	msg = jwtPattern.ReplaceAllString(msg, "****")
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	return msg
}
