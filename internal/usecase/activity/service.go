package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"activity-guard/internal/domain/entity"
	"activity-guard/internal/observability/logging"
	"activity-guard/internal/observability/metrics"
	"activity-guard/internal/observability/tracing"
	"activity-guard/internal/repository"
	"activity-guard/internal/resilience/retry"
	"activity-guard/pkg/clock"
	"activity-guard/pkg/ratelimit"
	"activity-guard/pkg/replay"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ReplayMode controls whether Record runs the replay guard.
type ReplayMode string

const (
	// ReplayOptional checks replay only when the request carries a client time.
	ReplayOptional ReplayMode = "optional"
	// ReplayRequired rejects requests without a client time.
	ReplayRequired ReplayMode = "required"
	// ReplayOff never checks replay on Record. CheckReplay still works.
	ReplayOff ReplayMode = "off"
)

// ParseReplayMode converts s into a ReplayMode. Empty means ReplayOptional.
func ParseReplayMode(s string) (ReplayMode, error) {
	switch ReplayMode(s) {
	case "", ReplayOptional:
		return ReplayOptional, nil
	case ReplayRequired, ReplayOff:
		return ReplayMode(s), nil
	default:
		return "", fmt.Errorf("invalid replay mode %q: want optional, required or off", s)
	}
}

// StatsWindow is the trailing span covered by Stats.ActionsPerMinute.
const StatsWindow = 10 * time.Minute

// Admitter admits actions against the per-user sliding window.
type Admitter interface {
	TryAdmit(ctx context.Context, userID string, now time.Time) (*ratelimit.Decision, error)
}

// ReplayChecker runs the client-time drift and duplicate checks.
type ReplayChecker interface {
	Check(ctx context.Context, userID, action, clientTime string, now time.Time) (replay.Result, error)
	Config() replay.Config
}

// Config holds Service settings.
type Config struct {
	ReplayMode ReplayMode

	// StoreTimeout bounds each limiter, replay and repository call.
	// Default: 2s
	StoreTimeout time.Duration

	// AppendRetry applies to repository appends only. Limiter and replay
	// calls are never retried because they are not idempotent.
	AppendRetry retry.Config
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		ReplayMode:   ReplayOptional,
		StoreTimeout: 2 * time.Second,
		AppendRetry:  retry.DBConfig(),
	}
}

// RecordInput is one activity submission from an authenticated user.
type RecordInput struct {
	UserID    string
	Action    entity.Action
	Meta      json.RawMessage
	IPAddress string
	// ClientTime is the client's ISO-8601 timestamp; nil when not supplied.
	ClientTime *string
}

// RecordResult describes an admitted and stored event.
type RecordResult struct {
	EventID    string
	ServerTime time.Time
	// ActionsInWindow is the post-admission count, including this event.
	ActionsInWindow int
	Limit           int
}

// ReplayInput is a standalone replay check.
type ReplayInput struct {
	UserID     string
	Action     entity.Action
	ClientTime string
}

// ReplayResult describes a passed replay check.
type ReplayResult struct {
	ServerTime time.Time
	DriftMs    int64
}

// MinuteCount is the number of events created within one UTC minute.
type MinuteCount struct {
	Minute time.Time
	Count  int
}

// Stats summarises stored activity.
// MostCommonAction and MostActiveUser are empty when there are no events.
type Stats struct {
	ServerTime            time.Time
	TotalActions          int
	MostCommonAction      entity.Action
	MostCommonActionCount int
	ActionsPerMinute      []MinuteCount
	MostActiveUser        string
	MostActiveUserCount   int
}

// Service records activity behind the abuse guards.
type Service struct {
	limiter Admitter
	guard   ReplayChecker
	repo    repository.ActivityEventRepository
	clock   clock.Clock
	config  Config
	logger  *slog.Logger
}

// NewService wires the guards and the event store.
// guard may be nil only when cfg.ReplayMode is ReplayOff.
func NewService(
	limiter Admitter,
	guard ReplayChecker,
	repo repository.ActivityEventRepository,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Service {
	def := DefaultConfig()
	if cfg.ReplayMode == "" {
		cfg.ReplayMode = def.ReplayMode
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.AppendRetry.MaxAttempts <= 0 {
		cfg.AppendRetry = def.AppendRetry
	}
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		limiter: limiter,
		guard:   guard,
		repo:    repo,
		clock:   clk,
		config:  cfg,
		logger:  logger,
	}
}

// Now returns the server time used for decisions.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Record validates in, runs the replay guard when applicable, admits the
// action against the rate limit and appends the event.
//
// Errors:
//   - ErrUnauthorized when in.UserID is empty
//   - *ValidationError for malformed input
//   - *ReplayRejectedError for drift or a duplicate within the replay window
//   - *RateLimitedError when the window is full
//   - *InfrastructureError when a store failed or timed out; nothing was stored
func (s *Service) Record(ctx context.Context, in RecordInput) (result *RecordResult, err error) {
	start := time.Now()
	now := s.clock.Now()

	ctx, span := tracing.StartSpan(ctx, "activity.record",
		attribute.String("user.id", in.UserID),
		attribute.String("activity.action", string(in.Action)))
	defer func() {
		s.recordOutcome(in.Action, err, time.Since(start))
		tracing.EndSpan(span, err)
	}()

	if in.UserID == "" {
		return nil, ErrUnauthorized
	}
	if verr := validateRecord(in); verr != nil {
		return nil, verr
	}

	logger := logging.WithUser(logging.WithRequestID(ctx, s.logger), in.UserID)

	if err := s.checkReplayForRecord(ctx, in, now); err != nil {
		return nil, err
	}

	decision, err := s.admit(ctx, in.UserID, now)
	if err != nil {
		return nil, err
	}

	event := &entity.ActivityEvent{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Action:    in.Action,
		Meta:      in.Meta,
		IPAddress: in.IPAddress,
		CreatedAt: now,
	}
	if event.IPAddress == "" {
		event.IPAddress = entity.UnknownIP
	}

	id, err := s.append(ctx, event)
	if err != nil {
		logger.Error("admitted activity could not be stored",
			slog.String("event_id", event.ID),
			slog.Any("error", err))
		return nil, err
	}

	logger.Debug("activity recorded",
		slog.String("event_id", id),
		slog.String("action", string(in.Action)),
		slog.Int("actions_in_window", decision.Count))

	return &RecordResult{
		EventID:         id,
		ServerTime:      now,
		ActionsInWindow: decision.Count,
		Limit:           decision.Limit,
	}, nil
}

// CheckReplay runs the replay guard for (in.UserID, in.Action) regardless of
// ReplayMode. A passed check consumes the claim.
func (s *Service) CheckReplay(ctx context.Context, in ReplayInput) (*ReplayResult, error) {
	now := s.clock.Now()

	if in.UserID == "" {
		return nil, ErrUnauthorized
	}
	if verr := validateAction(in.Action); verr != nil {
		return nil, verr
	}
	if in.ClientTime == "" {
		return nil, &ValidationError{
			Message: "Invalid request",
			Issues:  []Issue{{Path: "clientTime", Message: "clientTime is required"}},
		}
	}
	if s.guard == nil {
		return nil, &InfrastructureError{Op: "replay check", Err: errors.New("replay guard not configured")}
	}

	res, err := s.runGuard(ctx, in.UserID, in.Action, in.ClientTime, now)
	if err != nil {
		reason := metrics.RejectValidation
		var rejected *ReplayRejectedError
		var infra *InfrastructureError
		switch {
		case errors.As(err, &rejected):
			reason = string(rejected.Reason)
		case errors.As(err, &infra):
			reason = metrics.RejectUnavailable
		}
		metrics.ActivityRejectedTotal.WithLabelValues(reason).Inc()
		return nil, err
	}

	return &ReplayResult{ServerTime: now, DriftMs: res.DriftMs}, nil
}

// Stats aggregates every stored event. The four aggregations run concurrently.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.clock.Now()
	since := now.Add(-StatsWindow)

	ctx, span := tracing.StartSpan(ctx, "activity.stats")
	stats := &Stats{ServerTime: now, ActionsPerMinute: []MinuteCount{}}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.aggregate(gctx, repository.AggregateQuery{GroupBy: repository.GroupNone})
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			stats.TotalActions = rows[0].Count
		}
		return nil
	})

	g.Go(func() error {
		rows, err := s.aggregate(gctx, repository.AggregateQuery{
			GroupBy: repository.GroupAction,
			OrderBy: repository.OrderCountDesc,
			Limit:   1,
		})
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			stats.MostCommonAction = entity.Action(rows[0].Key)
			stats.MostCommonActionCount = rows[0].Count
		}
		return nil
	})

	g.Go(func() error {
		rows, err := s.aggregate(gctx, repository.AggregateQuery{
			GroupBy: repository.GroupMinute,
			Since:   &since,
			OrderBy: repository.OrderKeyAsc,
		})
		if err != nil {
			return err
		}
		perMinute := make([]MinuteCount, 0, len(rows))
		for _, row := range rows {
			perMinute = append(perMinute, MinuteCount{Minute: row.Minute, Count: row.Count})
		}
		stats.ActionsPerMinute = perMinute
		return nil
	})

	g.Go(func() error {
		rows, err := s.aggregate(gctx, repository.AggregateQuery{
			GroupBy: repository.GroupUser,
			OrderBy: repository.OrderCountDesc,
			Limit:   1,
		})
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			stats.MostActiveUser = rows[0].Key
			stats.MostActiveUserCount = rows[0].Count
		}
		return nil
	})

	err := g.Wait()
	tracing.EndSpan(span, err)
	if err != nil {
		s.logger.Error("activity stats failed", slog.Any("error", err))
		return nil, err
	}
	return stats, nil
}

func (s *Service) checkReplayForRecord(ctx context.Context, in RecordInput, now time.Time) error {
	switch {
	case s.config.ReplayMode == ReplayOff:
		return nil
	case in.ClientTime == nil && s.config.ReplayMode == ReplayRequired:
		return &ValidationError{
			Message: "Invalid request",
			Issues:  []Issue{{Path: "clientTime", Message: "clientTime is required"}},
		}
	case in.ClientTime == nil:
		return nil
	case *in.ClientTime == "":
		return &ValidationError{
			Message: "Invalid request",
			Issues:  []Issue{{Path: "clientTime", Message: "clientTime is required"}},
		}
	case s.guard == nil:
		return &InfrastructureError{Op: "replay check", Err: errors.New("replay guard not configured")}
	}

	_, err := s.runGuard(ctx, in.UserID, in.Action, *in.ClientTime, now)
	return err
}

// runGuard calls the replay guard under StoreTimeout and maps its verdict.
func (s *Service) runGuard(ctx context.Context, userID string, action entity.Action, clientTime string, now time.Time) (replay.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	res, err := s.guard.Check(ctx, userID, string(action), clientTime, now)
	if err != nil {
		var perr *replay.ValidationError
		if errors.As(err, &perr) {
			return res, &ValidationError{
				Message: perr.Message,
				Issues:  []Issue{{Path: "clientTime", Message: perr.Message}},
			}
		}
		return res, &InfrastructureError{Op: "replay check", Err: err}
	}

	cfg := s.guard.Config()
	switch res.Outcome {
	case replay.Allowed:
		return res, nil
	case replay.RejectedDrift:
		return res, &ReplayRejectedError{
			Reason:     ReplayDrift,
			DriftMs:    res.DriftMs,
			MaxDrift:   cfg.MaxDrift,
			Window:     cfg.Window,
			ServerTime: now,
		}
	case replay.RejectedReplay:
		return res, &ReplayRejectedError{
			Reason:     ReplayDuplicate,
			DriftMs:    res.DriftMs,
			MaxDrift:   cfg.MaxDrift,
			Window:     cfg.Window,
			ServerTime: now,
		}
	default:
		return res, &InfrastructureError{
			Op:  "replay check",
			Err: fmt.Errorf("unexpected replay outcome %s", res.Outcome),
		}
	}
}

// admit calls the limiter under StoreTimeout.
func (s *Service) admit(ctx context.Context, userID string, now time.Time) (*ratelimit.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	decision, err := s.limiter.TryAdmit(ctx, userID, now)
	if err != nil {
		return nil, &InfrastructureError{Op: "rate limit", Err: err}
	}
	if !decision.Admitted {
		return nil, &RateLimitedError{
			Count:      decision.Count,
			Limit:      decision.Limit,
			Window:     decision.Window,
			RetryAfter: decision.RetryAfter(),
			ServerTime: now,
		}
	}
	return decision, nil
}

// append stores event, retrying retriable database errors. The event id is
// fixed before the first attempt so a retry after an ambiguous failure
// cannot store the event twice.
func (s *Service) append(ctx context.Context, event *entity.ActivityEvent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	var id string
	err := retry.Do(ctx, s.config.AppendRetry, s.logger, func(ctx context.Context) error {
		start := time.Now()
		var appendErr error
		id, appendErr = s.repo.Append(ctx, event)
		metrics.RecordDBQuery("append_activity", time.Since(start))
		return appendErr
	})
	if err != nil {
		return "", &InfrastructureError{Op: "append event", Err: err}
	}
	return id, nil
}

// aggregate drains one aggregation under StoreTimeout.
func (s *Service) aggregate(ctx context.Context, q repository.AggregateQuery) ([]repository.AggregateRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.RecordDBQuery("aggregate_activity", time.Since(start)) }()

	var rows []repository.AggregateRow
	for row, err := range s.repo.Aggregate(ctx, q) {
		if err != nil {
			return nil, &InfrastructureError{Op: "aggregate events", Err: err}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Service) recordOutcome(action entity.Action, err error, elapsed time.Duration) {
	if err == nil {
		metrics.RecordActivityAccepted(string(action), elapsed)
		return
	}

	var (
		verr     *ValidationError
		rejected *ReplayRejectedError
		limited  *RateLimitedError
		infra    *InfrastructureError
	)
	switch {
	case errors.As(err, &verr):
		metrics.RecordActivityRejected(metrics.RejectValidation, elapsed)
	case errors.As(err, &rejected):
		metrics.RecordActivityRejected(string(rejected.Reason), elapsed)
	case errors.As(err, &limited):
		metrics.RecordActivityRejected(metrics.RejectRateLimited, elapsed)
	case errors.As(err, &infra):
		metrics.RecordActivityRejected(metrics.RejectUnavailable, elapsed)
	}
}

func validateRecord(in RecordInput) *ValidationError {
	var issues []Issue
	if verr := validateAction(in.Action); verr != nil {
		issues = append(issues, verr.Issues...)
	}
	if err := entity.ValidateMeta(in.Meta); err != nil {
		issues = append(issues, issueFrom(err, "meta"))
	}
	if len(issues) > 0 {
		return &ValidationError{Message: "Invalid request", Issues: issues}
	}
	return nil
}

func validateAction(action entity.Action) *ValidationError {
	if _, err := entity.ParseAction(string(action)); err != nil {
		return &ValidationError{
			Message: "Invalid request",
			Issues:  []Issue{issueFrom(err, "action")},
		}
	}
	return nil
}

func issueFrom(err error, fallbackPath string) Issue {
	var ve *entity.ValidationError
	if errors.As(err, &ve) {
		return Issue{Path: ve.Field, Message: ve.Message}
	}
	return Issue{Path: fallbackPath, Message: err.Error()}
}
