// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Example usage:
//
//	logger := logging.New(logging.OptionsFromEnv())
//	logger.Info("api started", slog.String("addr", ":8080"))
//
//	func handle(ctx context.Context, userID string) {
//	    logger := logging.WithUser(logging.WithRequestID(ctx, slog.Default()), userID)
//	    logger.Info("activity recorded")
//	}
package logging
