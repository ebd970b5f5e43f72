// Package anomaly flags users whose recent activity matches an abuse rule.
// Flags are recomputed from the event store on every call and never persisted.
package anomaly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/observability/tracing"
	"activity-guard/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidConfig indicates a non-positive rule window or threshold.
var ErrInvalidConfig = errors.New("invalid anomaly config")

// Config holds the rule thresholds.
type Config struct {
	// HighFrequencyWindow and HighFrequencyMin: a user with at least
	// HighFrequencyMin events inside the window is flagged.
	HighFrequencyWindow time.Duration
	HighFrequencyMin    int

	// MultiIPWindow and MultiIPMax: a user seen from more than MultiIPMax
	// distinct addresses inside the window is flagged.
	MultiIPWindow time.Duration
	MultiIPMax    int

	// QueryTimeout bounds each rule query. Zero means no extra bound.
	QueryTimeout time.Duration
}

// DefaultConfig returns the production rules: 20 events per minute, and more
// than 2 addresses in 5 minutes.
func DefaultConfig() Config {
	return Config{
		HighFrequencyWindow: time.Minute,
		HighFrequencyMin:    20,
		MultiIPWindow:       5 * time.Minute,
		MultiIPMax:          2,
		QueryTimeout:        5 * time.Second,
	}
}

// Validate checks that every rule is usable.
func (c Config) Validate() error {
	if c.HighFrequencyWindow <= 0 || c.MultiIPWindow <= 0 {
		return fmt.Errorf("%w: windows must be positive", ErrInvalidConfig)
	}
	if c.HighFrequencyMin < 1 {
		return fmt.Errorf("%w: high frequency threshold must be at least 1, got %d", ErrInvalidConfig, c.HighFrequencyMin)
	}
	if c.MultiIPMax < 1 {
		return fmt.Errorf("%w: distinct address bound must be at least 1, got %d", ErrInvalidConfig, c.MultiIPMax)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("%w: query timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Detector evaluates the anomaly rules against the event store.
type Detector struct {
	repo   repository.ActivityEventRepository
	config Config
	logger *slog.Logger
}

// NewDetector creates a detector. cfg must pass Validate.
func NewDetector(repo repository.ActivityEventRepository, cfg Config, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{repo: repo, config: cfg, logger: logger}, nil
}

// Config returns the rules in force.
func (d *Detector) Config() Config {
	return d.config
}

// Reasons lists every reason FindSuspicious can return.
func Reasons() []entity.SuspicionReason {
	return []entity.SuspicionReason{entity.ReasonHighFrequency, entity.ReasonMultipleIPs}
}

// FindSuspicious evaluates both rules over windows ending at now and returns
// the union of their flags, one per (user, reason), ordered by user then
// reason. Both rules run concurrently; the first failure cancels the other.
func (d *Detector) FindSuspicious(ctx context.Context, now time.Time) ([]entity.SuspiciousFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "anomaly.find_suspicious")

	var highFreq, multiIP []entity.SuspiciousFlag
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		since := now.Add(-d.config.HighFrequencyWindow)
		flags, err := d.rule(gctx, entity.ReasonHighFrequency, repository.AggregateQuery{
			GroupBy:  repository.GroupUser,
			Since:    &since,
			Until:    &now,
			MinCount: d.config.HighFrequencyMin,
		})
		highFreq = flags
		return err
	})

	g.Go(func() error {
		since := now.Add(-d.config.MultiIPWindow)
		flags, err := d.rule(gctx, entity.ReasonMultipleIPs, repository.AggregateQuery{
			GroupBy:    repository.GroupUser,
			Since:      &since,
			Until:      &now,
			DistinctIP: true,
			MinCount:   d.config.MultiIPMax + 1,
		})
		multiIP = flags
		return err
	})

	if err := g.Wait(); err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}

	flags := merge(highFreq, multiIP)
	span.SetAttributes(attribute.Int("anomaly.flags", len(flags)))
	tracing.EndSpan(span, nil)

	if len(flags) > 0 {
		d.logger.Debug("suspicious users found", slog.Int("flags", len(flags)))
	}
	return flags, nil
}

func (d *Detector) rule(ctx context.Context, reason entity.SuspicionReason, q repository.AggregateQuery) ([]entity.SuspiciousFlag, error) {
	if d.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.QueryTimeout)
		defer cancel()
	}

	var flags []entity.SuspiciousFlag
	for row, err := range d.repo.Aggregate(ctx, q) {
		if err != nil {
			return nil, fmt.Errorf("anomaly rule %q: %w", reason, err)
		}
		flags = append(flags, entity.SuspiciousFlag{UserID: row.Key, Reason: reason, Count: row.Count})
	}
	return flags, nil
}

// merge keeps the last flag seen for each (user, reason) and sorts the result.
func merge(groups ...[]entity.SuspiciousFlag) []entity.SuspiciousFlag {
	byKey := make(map[string]entity.SuspiciousFlag)
	for _, group := range groups {
		for _, f := range group {
			byKey[f.Key()] = f
		}
	}

	out := make([]entity.SuspiciousFlag, 0, len(byKey))
	for _, f := range byKey {
		out = append(out, f)
	}
	entity.SortFlags(out)
	return out
}
