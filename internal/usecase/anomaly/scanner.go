package anomaly

import (
	"context"
	"log/slog"
	"time"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/observability/metrics"
	"activity-guard/pkg/clock"
)

// Scanner runs the detector periodically on behalf of the worker and
// publishes the result as metrics and log lines.
type Scanner struct {
	detector *Detector
	clock    clock.Clock
	logger   *slog.Logger
}

// NewScanner creates a scanner. A nil clock means the system clock.
func NewScanner(detector *Detector, clk clock.Clock, logger *slog.Logger) *Scanner {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{detector: detector, clock: clk, logger: logger}
}

// Scan evaluates the rules once at the current time.
// Every flagged user is logged at warn level.
func (s *Scanner) Scan(ctx context.Context) ([]entity.SuspiciousFlag, error) {
	start := time.Now()

	flags, err := s.detector.FindSuspicious(ctx, s.clock.Now())
	if err != nil {
		metrics.RecordAnomalyScanError(time.Since(start))
		s.logger.Error("anomaly scan failed", slog.Any("error", err))
		return nil, err
	}

	counts := make(map[string]int)
	for _, f := range flags {
		counts[string(f.Reason)]++
		s.logger.Warn("suspicious activity",
			slog.String("user_id", f.UserID),
			slog.String("reason", string(f.Reason)),
			slog.Int("count", f.Count))
	}

	reasons := make([]string, 0, len(Reasons()))
	for _, r := range Reasons() {
		reasons = append(reasons, string(r))
	}
	metrics.RecordAnomalyScan(time.Since(start), reasons, counts)

	s.logger.Info("anomaly scan completed",
		slog.Int("flags", len(flags)),
		slog.Duration("duration", time.Since(start)))
	return flags, nil
}
