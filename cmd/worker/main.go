// Command worker runs the anomaly detector on a cron schedule against the
// shared event store and publishes its findings as logs and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"activity-guard/internal/config"
	"activity-guard/internal/handler/http/respond"
	pgRepo "activity-guard/internal/infra/adapter/persistence/postgres"
	"activity-guard/internal/infra/db"
	workerPkg "activity-guard/internal/infra/worker"
	"activity-guard/internal/observability/logging"
	"activity-guard/internal/observability/metrics"
	"activity-guard/internal/resilience/circuitbreaker"
	"activity-guard/internal/usecase/anomaly"
	pkgconfig "activity-guard/pkg/config"
)

func main() {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	logger := logging.New(logging.OptionsFromEnv())
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker exited", slog.String("error", respond.SanitizeError(err)))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadWorker()
	if err != nil {
		return err
	}

	workerMetrics := workerPkg.NewWorkerMetrics(prometheus.DefaultRegisterer)
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("schedule", settings.AnomalySchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("scan_timeout", workerConfig.ScanTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	database, err := db.Open(ctx, settings.DatabaseURL, db.PoolConfigFromEnv(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(ctx, database); err != nil {
		return err
	}

	repo := pgRepo.NewActivityEventRepo(circuitbreaker.NewDBCircuitBreaker(database, settings.DBBreaker, logger))
	detector, err := anomaly.NewDetector(repo, settings.Anomaly, logger)
	if err != nil {
		return err
	}
	job := workerPkg.NewScanJob(anomaly.NewScanner(detector, nil, logger), workerConfig.ScanTimeout, workerMetrics, logger)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), prometheus.DefaultGatherer, logger)

	c := cron.New(cron.WithLocation(workerConfig.Location()))
	if _, err := c.AddFunc(settings.AnomalySchedule, func() { job.Run(ctx) }); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.Start(gctx) })
	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := database.Stats()
				metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
			}
		}
	})
	g.Go(func() error {
		c.Start()
		healthServer.SetReady(true)
		logger.Info("worker started",
			slog.String("schedule", settings.AnomalySchedule),
			slog.String("timezone", workerConfig.Timezone))

		<-gctx.Done()
		healthServer.SetReady(false)
		logger.Info("waiting for running scan to finish")
		<-c.Stop().Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
