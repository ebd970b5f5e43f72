// Command api serves the activity API: recording user actions behind the
// rate limiter and replay guard, activity statistics, and on-demand anomaly
// reports.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"activity-guard/internal/config"
	hhttp "activity-guard/internal/handler/http"
	hactivity "activity-guard/internal/handler/http/activity"
	hauth "activity-guard/internal/handler/http/auth"
	"activity-guard/internal/handler/http/middleware"
	"activity-guard/internal/handler/http/pathutil"
	"activity-guard/internal/handler/http/requestid"
	"activity-guard/internal/handler/http/respond"
	"activity-guard/internal/infra/adapter/persistence/memory"
	pgRepo "activity-guard/internal/infra/adapter/persistence/postgres"
	"activity-guard/internal/infra/db"
	"activity-guard/internal/infra/redisstore"
	"activity-guard/internal/observability/logging"
	"activity-guard/internal/observability/metrics"
	"activity-guard/internal/observability/slo"
	"activity-guard/internal/observability/tracing"
	"activity-guard/internal/repository"
	"activity-guard/internal/resilience/circuitbreaker"
	"activity-guard/internal/usecase/activity"
	"activity-guard/internal/usecase/anomaly"
	pkgconfig "activity-guard/pkg/config"
	"activity-guard/pkg/ratelimit"
	"activity-guard/pkg/replay"
)

const (
	// requestTimeout bounds a whole request. Must exceed GUARD_STORE_TIMEOUT.
	requestTimeout = 15 * time.Second

	cleanupInterval   = time.Minute
	sloInterval       = 30 * time.Second
	dbStatsInterval   = 15 * time.Second
	memoryStoreNotice = "in-memory store in use: limits are enforced per instance only"
)

func main() {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	logger := logging.New(logging.OptionsFromEnv())
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", slog.String("error", respond.SanitizeError(err)))
		os.Exit(1)
	}
}

func getVersion() string {
	return pkgconfig.GetEnvString("VERSION", "dev")
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	version := getVersion()

	shutdownTracing, err := tracing.Setup(tracing.ProviderConfig{
		ServiceName:    "activity-guard-api",
		ServiceVersion: version,
		SampleRatio:    pkgconfig.GetEnvFloat("OTEL_SAMPLE_RATIO", 1),
	})
	if err != nil {
		return err
	}

	comps, err := setupServer(ctx, cfg, version, logger)
	if err != nil {
		return err
	}
	defer comps.close(logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	return runServer(ctx, cfg.Server, comps, logger)
}

// ServerComponents holds the handler and everything that must be closed or
// maintained in the background while it serves.
type ServerComponents struct {
	Handler      http.Handler
	Tracker      *slo.Tracker
	Database     *sql.DB
	Redis        *redisstore.Client
	CleanupTasks []hhttp.CleanupTask
}

func (c *ServerComponents) close(logger *slog.Logger) {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("failed to close redis", slog.Any("error", err))
		}
	}
	if c.Database != nil {
		if err := c.Database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}
}

// setupServer opens the backing stores and assembles the handler.
func setupServer(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*ServerComponents, error) {
	comps := &ServerComponents{Tracker: slo.NewTracker()}
	var deps []hhttp.Dependency

	limiterMetrics := ratelimit.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	// Atomic store: Redis when configured, otherwise process memory.
	var (
		windowStore ratelimit.WindowStore
		claimStore  replay.ClaimStore
	)
	if cfg.RedisURL != "" {
		breaker := circuitbreaker.New(cfg.RedisBreaker, logger)
		client, err := redisstore.Open(ctx, redisstore.Config{URL: cfg.RedisURL, OperationTimeout: cfg.Guard.StoreTimeout}, breaker, logger)
		if err != nil {
			return nil, err
		}
		comps.Redis = client
		windowStore = redisstore.NewWindowStore(client)
		claimStore = redisstore.NewClaimStore(client)
		deps = append(deps, hhttp.Dependency{Name: "redis", Pinger: client, Breaker: breaker})
		logger.Info("atomic store: redis")
	} else {
		memWindows := ratelimit.NewMemoryWindowStore(ratelimit.MemoryStoreConfig{MaxKeys: cfg.Guard.MemoryMaxKeys})
		memClaims := replay.NewMemoryClaimStore(nil)
		windowStore, claimStore = memWindows, memClaims
		comps.CleanupTasks = append(comps.CleanupTasks,
			hhttp.CleanupTask{Name: "rate_limit_windows", Run: func(ctx context.Context) (int, error) {
				removed, err := memWindows.Cleanup(ctx, time.Now())
				limiterMetrics.SetActiveKeys(memWindows.KeyCount())
				return removed, err
			}},
			hhttp.CleanupTask{Name: "replay_claims", Run: memClaims.Cleanup},
		)
		deps = append(deps, hhttp.Dependency{Name: "atomic_store"})
		logger.Warn(memoryStoreNotice, slog.String("store", "atomic"))
	}

	// Event store: Postgres when configured, otherwise process memory.
	var repo repository.ActivityEventRepository
	if cfg.DatabaseURL != "" {
		database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfigFromEnv(), logger)
		if err != nil {
			comps.close(logger)
			return nil, err
		}
		comps.Database = database
		if err := db.MigrateUp(ctx, database); err != nil {
			comps.close(logger)
			return nil, err
		}
		dbBreaker := circuitbreaker.NewDBCircuitBreaker(database, cfg.DBBreaker, logger)
		repo = pgRepo.NewActivityEventRepo(dbBreaker)
		deps = append(deps, hhttp.Dependency{Name: "database", Pinger: repo, Breaker: dbBreaker})
		logger.Info("event store: postgres")
	} else {
		repo = memory.NewActivityEventRepo()
		deps = append(deps, hhttp.Dependency{Name: "event_store"})
		logger.Warn(memoryStoreNotice, slog.String("store", "events"))
	}

	limiter := ratelimit.NewLimiter(windowStore, cfg.Guard.RateLimit,
		ratelimit.WithMetrics(limiterMetrics),
		ratelimit.WithLogger(logger))
	guard := replay.NewGuard(claimStore, cfg.Guard.Replay, logger)

	mode, err := activity.ParseReplayMode(cfg.Guard.ReplayMode)
	if err != nil {
		comps.close(logger)
		return nil, err
	}
	svcCfg := activity.DefaultConfig()
	svcCfg.ReplayMode = mode
	svcCfg.StoreTimeout = cfg.Guard.StoreTimeout
	svc := activity.NewService(limiter, guard, repo, nil, svcCfg, logger)

	detector, err := anomaly.NewDetector(repo, cfg.Anomaly, logger)
	if err != nil {
		comps.close(logger)
		return nil, err
	}

	logger.Info("activity guard configured",
		slog.Int("rate_limit", cfg.Guard.RateLimit.Limit),
		slog.Duration("rate_window", cfg.Guard.RateLimit.Window),
		slog.Duration("replay_window", cfg.Guard.Replay.Window),
		slog.Duration("max_drift", cfg.Guard.Replay.MaxDrift),
		slog.String("replay_mode", string(mode)))

	mux := setupRoutes(svc, detector, deps, version, logger)
	comps.Handler = applyMiddleware(cfg, mux, comps.Tracker, logger)
	return comps, nil
}

// setupRoutes registers the public probes and the authenticated activity API.
func setupRoutes(svc *activity.Service, detector *anomaly.Detector, deps []hhttp.Dependency, version string, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /health", &hhttp.HealthHandler{Dependencies: deps, Version: version, Logger: logger})
	mux.Handle("GET /ready", &hhttp.ReadyHandler{Dependencies: deps})
	mux.Handle("GET /live", &hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	hactivity.Register(mux, svc, detector, logger)
	return mux
}

// applyMiddleware wraps mux, outermost first:
// CORS → Request ID → Tracing → Recovery → Logging → Body Limit → Metrics →
// Timeout → Auth → Client IP → route capture.
func applyMiddleware(cfg *config.Config, mux *http.ServeMux, tracker *slo.Tracker, logger *slog.Logger) http.Handler {
	if len(cfg.CORS.AllowedOrigins) > 0 {
		logger.Info("CORS enabled",
			slog.Any("allowed_origins", cfg.CORS.AllowedOrigins),
			slog.Int("max_age", cfg.CORS.MaxAge))
	}
	if len(cfg.TrustedProxies) == 0 {
		logger.Warn("TRUSTED_PROXIES not set: X-Forwarded-For and X-Real-IP are trusted from any peer")
	}

	var h http.Handler = pathutil.Capture(mux)
	h = middleware.ClientIP(middleware.NewIPExtractor(cfg.TrustedProxies, logger))(h)
	h = hauth.Middleware(hauth.NewVerifier([]byte(cfg.JWTSecret)), logger)(h)
	h = hhttp.Timeout(requestTimeout)(h)
	h = hhttp.MetricsMiddleware(tracker)(h)
	h = hhttp.LimitRequestBody(hhttp.MaxRequestBodyBytes)(h)
	h = hhttp.Logging(logger)(h)
	h = hhttp.Recover(logger)(h)
	h = tracing.Middleware(h)
	h = requestid.Middleware(h)
	h = middleware.CORS(cfg.CORS, logger)(h)
	return h
}

// runServer serves until ctx is cancelled and then drains in-flight requests.
func runServer(ctx context.Context, sc config.ServerConfig, comps *ServerComponents, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.Port),
		Handler:           comps.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout + requestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	startBackground(bgCtx, comps, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	cancelBg()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// startBackground launches the SLO publisher, the connection pool gauge
// updater and, for in-memory stores, the expiry sweeper.
func startBackground(ctx context.Context, comps *ServerComponents, logger *slog.Logger) {
	go every(ctx, sloInterval, func() {
		snap := comps.Tracker.Publish()
		logger.Debug("slo snapshot",
			slog.Int("requests", snap.Requests),
			slog.Float64("availability", snap.Availability),
			slog.Duration("p99", snap.P99))
	})

	if comps.Database != nil {
		go every(ctx, dbStatsInterval, func() {
			stats := comps.Database.Stats()
			metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
		})
	}

	if len(comps.CleanupTasks) > 0 {
		go hhttp.StartStoreCleanup(ctx, cleanupInterval, logger, comps.CleanupTasks...)
	}
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
