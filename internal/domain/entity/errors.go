package entity

import "fmt"

// ValidationError reports a single field of an activity that failed validation.
// Field uses the JSON path of the offending value ("action", "meta", ...).
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
