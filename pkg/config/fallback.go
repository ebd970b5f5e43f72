package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadResult is the outcome of a fail-open load.
type LoadResult[T any] struct {
	Value T
	// Warning explains why the default was used. Empty when the environment
	// value was accepted or the variable was unset.
	Warning         string
	FallbackApplied bool
}

// LoadWithFallback reads key, parses and validates it, and falls back to
// defaultValue with a warning instead of failing. An unset variable yields
// the default silently. A nil validate accepts any parsed value.
//
//	res := LoadWithFallback("WORKER_TIMEZONE", "UTC", ParseString, ValidateTimezone)
//	if res.FallbackApplied {
//	    logger.Warn("configuration fallback applied", slog.String("warning", res.Warning))
//	}
func LoadWithFallback[T any](key string, defaultValue T, parse func(string) (T, error), validate func(T) error) LoadResult[T] {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult[T]{Value: defaultValue}
	}

	fallback := func(err error) LoadResult[T] {
		return LoadResult[T]{
			Value:           defaultValue,
			Warning:         fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", key, raw, err, defaultValue),
			FallbackApplied: true,
		}
	}

	v, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return fallback(err)
		}
	}
	return LoadResult[T]{Value: v}
}

// ParseString is the identity parser for LoadWithFallback.
func ParseString(s string) (string, error) { return s, nil }

// ParseInt parses a base-10 int for LoadWithFallback.
func ParseInt(s string) (int, error) { return strconv.Atoi(s) }

// ParseDuration parses a Go duration for LoadWithFallback.
func ParseDuration(s string) (time.Duration, error) { return time.ParseDuration(s) }
