package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "action field",
			field:    "action",
			message:  "Expected string",
			expected: "validation error on field 'action': Expected string",
		},
		{
			name:     "meta field",
			field:    "meta",
			message:  "meta must be valid JSON",
			expected: "validation error on field 'meta': meta must be valid JSON",
		},
		{
			name:     "empty message",
			field:    "userId",
			message:  "",
			expected: "validation error on field 'userId': ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_InErrorChain(t *testing.T) {
	wrapped := fmt.Errorf("record activity: %w", &ValidationError{Field: "action", Message: "Expected string"})

	var ve *ValidationError
	require.True(t, errors.As(wrapped, &ve))
	assert.Equal(t, "action", ve.Field)
	assert.Equal(t, "Expected string", ve.Message)
}
