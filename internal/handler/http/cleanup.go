package http

import (
	"context"
	"log/slog"
	"time"
)

// CleanupTask purges expired entries from one in-memory store and reports
// how many were removed.
type CleanupTask struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// StartStoreCleanup runs every task once per interval until ctx is cancelled.
// Only the in-memory stores need it; Redis expires keys on its own.
func StartStoreCleanup(ctx context.Context, interval time.Duration, logger *slog.Logger, tasks ...CleanupTask) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("store cleanup started",
		slog.Duration("interval", interval),
		slog.Int("tasks", len(tasks)))

	for {
		select {
		case <-ctx.Done():
			logger.Info("store cleanup stopped")
			return
		case <-ticker.C:
			for _, task := range tasks {
				removed, err := task.Run(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("store cleanup failed",
						slog.String("store", task.Name),
						slog.Any("error", err))
					continue
				}
				logger.Debug("store cleanup completed",
					slog.String("store", task.Name),
					slog.Int("removed", removed))
			}
		}
	}
}
