package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/handler/http/respond"
)

// Scanner runs one anomaly scan.
type Scanner interface {
	Scan(ctx context.Context) ([]entity.SuspiciousFlag, error)
}

// ScanJob wraps a Scanner for cron: every run gets its own timeout, and a
// tick that fires while the previous scan is still running is skipped.
type ScanJob struct {
	scanner Scanner
	timeout time.Duration
	metrics *WorkerMetrics
	logger  *slog.Logger
	running atomic.Bool
}

// NewScanJob creates a job. metrics may be nil.
func NewScanJob(scanner Scanner, timeout time.Duration, metrics *WorkerMetrics, logger *slog.Logger) *ScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanJob{scanner: scanner, timeout: timeout, metrics: metrics, logger: logger}
}

// Run executes one scan and reports whether it ran to success.
func (j *ScanJob) Run(ctx context.Context) bool {
	if !j.running.CompareAndSwap(false, true) {
		j.logger.Warn("anomaly scan still running, skipping tick")
		j.record("skipped", 0, 0)
		return false
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	flags, err := j.scanner.Scan(ctx)
	if err != nil {
		j.logger.Error("anomaly scan job failed", slog.String("error", respond.SanitizeError(err)))
		j.record("failure", time.Since(start), 0)
		return false
	}

	j.record("success", time.Since(start), len(flags))
	if j.metrics != nil {
		j.metrics.RecordLastSuccess(time.Now())
	}
	return true
}

func (j *ScanJob) record(status string, d time.Duration, flags int) {
	if j.metrics == nil {
		return
	}
	j.metrics.RecordJobRun(status)
	if status != "skipped" {
		j.metrics.RecordJobDuration(d)
	}
	j.metrics.RecordFlags(flags)
}
