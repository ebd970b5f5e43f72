package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	for _, bad := range []string{"", "Login", "purchase", " click"} {
		_, err := ParseAction(bad)
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr), "input %q", bad)
		assert.Equal(t, "action", vErr.Field)
	}
}

func TestAction_UnmarshalJSON(t *testing.T) {
	var body struct {
		Action Action `json:"action"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"action":"view"}`), &body))
	assert.Equal(t, ActionView, body.Action)

	err := json.Unmarshal([]byte(`{"action":"delete"}`), &body)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "received 'delete'")

	err = json.Unmarshal([]byte(`{"action":5}`), &body)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Expected string", vErr.Message)
}

func TestActivityEvent_Validate(t *testing.T) {
	valid := func() *ActivityEvent {
		return &ActivityEvent{
			UserID:    "u1",
			Action:    ActionClick,
			Meta:      json.RawMessage(`{"button":"buy"}`),
			IPAddress: "203.0.113.7",
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	tests := []struct {
		name      string
		mutate    func(e *ActivityEvent)
		wantField string
	}{
		{name: "valid", mutate: func(e *ActivityEvent) {}},
		{name: "no meta", mutate: func(e *ActivityEvent) { e.Meta = nil }},
		{name: "missing user", mutate: func(e *ActivityEvent) { e.UserID = "" }, wantField: "userId"},
		{name: "bad action", mutate: func(e *ActivityEvent) { e.Action = "jump" }, wantField: "action"},
		{name: "bad meta", mutate: func(e *ActivityEvent) { e.Meta = json.RawMessage(`{"a":`) }, wantField: "meta"},
		{name: "missing time", mutate: func(e *ActivityEvent) { e.CreatedAt = time.Time{} }, wantField: "createdAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			err := e.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestValidateMeta_Size(t *testing.T) {
	atLimit := json.RawMessage(`"` + strings.Repeat("a", MaxMetaBytes-2) + `"`)
	assert.NoError(t, ValidateMeta(atLimit))

	over := json.RawMessage(`"` + strings.Repeat("a", MaxMetaBytes-1) + `"`)
	assert.Error(t, ValidateMeta(over))
}

func TestSortFlags(t *testing.T) {
	flags := []SuspiciousFlag{
		{UserID: "u2", Reason: ReasonHighFrequency, Count: 20},
		{UserID: "u1", Reason: ReasonMultipleIPs, Count: 3},
		{UserID: "u1", Reason: ReasonHighFrequency, Count: 25},
	}

	SortFlags(flags)

	assert.Equal(t, []SuspiciousFlag{
		{UserID: "u1", Reason: ReasonHighFrequency, Count: 25},
		{UserID: "u1", Reason: ReasonMultipleIPs, Count: 3},
		{UserID: "u2", Reason: ReasonHighFrequency, Count: 20},
	}, flags)
	assert.Equal(t, "u1:Multiple IPs", flags[1].Key())
}
