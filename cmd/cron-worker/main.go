package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"github.com/sportsarena/membership-backend/internal/cron"
	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/instance"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/metrics"
	"github.com/sportsarena/membership-backend/pkg/migrate"
	"github.com/sportsarena/membership-backend/pkg/outbox"
	"github.com/sportsarena/membership-backend/pkg/redis"
)

const serviceKind = "cron-worker"

type options struct {
	once bool
	jobs []string
}

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma separated job names to run (default all)")
	flag.Parse()
	opts := options{once: *once, jobs: splitNames(*only)}

	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal(context.Background(), "failed to load config", err)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.ID("local"),
	})

	err = run(ctx, cfg, logg, opts)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Fatal(ctx, "cron worker stopped", err)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	// The lock must outlive the slowest cycle; two intervals leaves headroom.
	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), 2*cfg.Cron.Interval)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	jobs, err := registerJobs(cfg, logg, dbClient)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   jobs,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	if opts.once {
		if err := service.RunSelected(ctx, opts.jobs...); err != nil {
			return fmt.Errorf("cron cycle: %w", err)
		}
		logg.Info(logg.WithField(ctx, "jobs", opts.jobs), "cron cycle complete")
		return nil
	}

	metricsServer := serveMetrics(ctx, logg, cfg.App.Port)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(logg.WithField(ctx, "interval", cfg.Cron.Interval.String()), "cron worker started")
	return service.Run(ctx)
}

func registerJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())

	expiry, err := cron.NewSubscriptionExpiryJob(cron.SubscriptionExpiryJobParams{
		Logger:        logg,
		DB:            dbClient,
		Subscriptions: subscriptions.NewRepository(dbClient.DB()),
		Outbox:        outbox.NewService(outboxRepo, logg),
		Location:      cfg.Billing.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("subscription expiry job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Outbox:    outboxRepo,
		DLQ:       outbox.NewDLQRepository(dbClient.DB()),
		Retention: cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return cron.NewRegistry(expiry, retention)
}

func serveMetrics(ctx context.Context, logg *logger.Logger, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()
	return server
}

func splitNames(raw string) []string {
	return lo.FilterMap(strings.Split(raw, ","), func(name string, _ int) (string, bool) {
		name = strings.TrimSpace(name)
		return name, name != ""
	})
}

func lockName(env string) string {
	return fmt.Sprintf("%s:%s", serviceKind, lo.Ternary(env == "", "local", env))
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "close failed", err)
	}
}
