package entity

import (
	"encoding/json"
	"fmt"
)

// Action is the closed set of activity kinds a user can report.
// The zero value is not a valid Action; obtain one through ParseAction.
type Action string

// Supported actions.
const (
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionView   Action = "view"
	ActionClick  Action = "click"
	ActionCustom Action = "custom"
)

// Actions lists every valid Action in declaration order.
var Actions = []Action{ActionLogin, ActionLogout, ActionView, ActionClick, ActionCustom}

// ParseAction converts s into an Action.
// Returns a ValidationError naming the "action" field when s is not one of Actions.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", &ValidationError{
		Field:   "action",
		Message: fmt.Sprintf("Invalid enum value. Expected 'login' | 'logout' | 'view' | 'click' | 'custom', received '%s'", s),
	}
}

// String implements fmt.Stringer.
func (a Action) String() string {
	return string(a)
}

// UnmarshalJSON rejects strings outside the enumeration so that a decoded
// Action is always valid.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &ValidationError{Field: "action", Message: "Expected string"}
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
