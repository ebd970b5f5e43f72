package activity

import (
	"encoding/json"
)

type recordRequest struct {
	Action     string          `json:"action"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	ClientTime *string         `json:"clientTime,omitempty"`
}

type recordResponse struct {
	Success            bool   `json:"success"`
	ServerTime         string `json:"serverTime"`
	ActionsInLast10Sec int    `json:"actionsInLast10Sec"`
	EventID            string `json:"eventId"`
}

type rateLimitedResponse struct {
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	ServerTime         string `json:"serverTime"`
	ActionsInLast10Sec int    `json:"actionsInLast10Sec"`
}

type replayCheckRequest struct {
	Action     string `json:"action"`
	ClientTime string `json:"clientTime"`
}

type replayCheckResponse struct {
	Allowed    bool   `json:"allowed"`
	ServerTime string `json:"serverTime"`
}

type issueDTO struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// rejectionResponse is the body of 400 and 409 answers. Allowed is only
// set by the replay-check route.
type rejectionResponse struct {
	Allowed    *bool      `json:"allowed,omitempty"`
	Message    string     `json:"message"`
	Issues     []issueDTO `json:"issues,omitempty"`
	ServerTime string     `json:"serverTime"`
	DriftMs    *int64     `json:"driftMs,omitempty"`
}

type minuteCountDTO struct {
	Minute string `json:"minute"`
	Count  int    `json:"count"`
}

// statsResponse leaves the "most" fields null while the store is empty.
type statsResponse struct {
	ServerTime                string           `json:"serverTime"`
	TotalActions              int              `json:"totalActions"`
	MostCommonAction          *string          `json:"mostCommonAction"`
	MostCommonActionCount     *int             `json:"mostCommonActionCount"`
	ActionsPerMinuteLast10Min []minuteCountDTO `json:"actionsPerMinuteLast10Min"`
	MostActiveUser            *string          `json:"mostActiveUser"`
	MostActiveUserCount       *int             `json:"mostActiveUserCount"`
}

type suspiciousDTO struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
