package db

import (
	"context"
	"database/sql"
	"fmt"
)

const createActivityEvents = `
CREATE TABLE IF NOT EXISTS activity_events (
    id          UUID PRIMARY KEY,
    user_id     TEXT NOT NULL,
    action      VARCHAR(16) NOT NULL CHECK (action IN ('login', 'logout', 'view', 'click', 'custom')),
    meta        JSONB,
    ip_address  TEXT NOT NULL DEFAULT 'unknown',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// activityIndexes serve the anomaly rules (per-user windows), the stats
// queries (recent events) and per-user action lookups.
var activityIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_activity_events_user_created ON activity_events(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_events_created ON activity_events(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_events_user_action_created ON activity_events(user_id, action, created_at DESC)`,
}

// MigrateUp creates the activity_events table and its indexes. It is
// idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createActivityEvents); err != nil {
		return fmt.Errorf("create activity_events: %w", err)
	}

	for _, idx := range activityIndexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
