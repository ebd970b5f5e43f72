package config

import (
	"fmt"
	"strings"
)

var weakSecretFragments = []string{
	"secret",
	"password",
	"changeme",
	"example",
	"default",
	"jwt",
	"123456",
	"qwerty",
}

// ValidateJWTSecret rejects signing secrets that are short, a single repeated
// character, or mostly a well-known placeholder word.
func ValidateJWTSecret(secret string) error {
	if len(secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters (current length: %d)", MinJWTSecretLength, len(secret))
	}
	if isRepeatedChar(secret) {
		return fmt.Errorf("JWT_SECRET must not be a single repeated character")
	}

	lower := strings.ToLower(secret)
	stripped := lower
	for _, weak := range weakSecretFragments {
		stripped = strings.ReplaceAll(stripped, weak, "")
	}
	if len(stripped) < MinJWTSecretLength/2 {
		return fmt.Errorf("JWT_SECRET must not be built from placeholder words")
	}
	return nil
}

func isRepeatedChar(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
