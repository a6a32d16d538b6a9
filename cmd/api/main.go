package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sportsarena/membership-backend/api/routes"
	"github.com/sportsarena/membership-backend/internal/academies"
	"github.com/sportsarena/membership-backend/internal/booking"
	"github.com/sportsarena/membership-backend/internal/facilities"
	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/internal/payments"
	"github.com/sportsarena/membership-backend/internal/sequence"
	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/instance"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/metrics"
	"github.com/sportsarena/membership-backend/pkg/migrate"
	"github.com/sportsarena/membership-backend/pkg/outbox"
	"github.com/sportsarena/membership-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(logg, "failed to load config", err)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		fatal(logg, "failed to bootstrap database", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		fatal(logg, "failed to run dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		fatal(logg, "failed to bootstrap redis", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		fatal(logg, "failed to wire services", err)
	}
	deps.DB = dbClient
	deps.Redis = redisClient
	deps.Gatherer = prometheus.DefaultGatherer
	deps.HTTP = metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID("local"),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (routes.Deps, error) {
	conn := dbClient.DB()
	memberRepo := members.NewRepository(conn)
	facilityRepo := facilities.NewRepository(conn)
	academyRepo := academies.NewRepository(conn)
	paymentRepo := payments.NewRepository(conn)
	subscriptionRepo := subscriptions.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	allocator, err := sequence.NewAllocator(sequence.Params{
		Repo: sequence.NewRepository(conn),
		Prefixes: map[enums.BillingDomain]string{
			enums.BillingDomainFacility: cfg.Billing.FacilityInvoicePrefix,
			enums.BillingDomainAcademy:  cfg.Billing.AcademyInvoicePrefix,
		},
		Location: cfg.Billing.Location(),
	})
	if err != nil {
		return routes.Deps{}, err
	}

	bookingSvc, err := booking.NewService(booking.ServiceParams{
		DB:            dbClient,
		Allocator:     allocator,
		Members:       memberRepo,
		Academies:     academyRepo,
		Facilities:    facilityRepo,
		Payments:      paymentRepo,
		Subscriptions: subscriptionRepo,
		Outbox:        emitter,
		Metrics:       metrics.NewBookingMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
		Retry: db.RetryOptions{
			MaxAttempts:    cfg.Billing.TxMaxAttempts,
			InitialBackoff: cfg.Billing.TxInitialBackoff,
			MaxBackoff:     cfg.Billing.TxMaxBackoff,
		},
		ManualReferencePrefix: cfg.Billing.ManualReferencePrefix,
		Location:              cfg.Billing.Location(),
	})
	if err != nil {
		return routes.Deps{}, err
	}

	memberSvc, err := members.NewService(members.ServiceParams{
		DB:            dbClient,
		Repo:          memberRepo,
		Subscriptions: subscriptionRepo,
		Payments:      paymentRepo,
		Outbox:        emitter,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	facilitySvc, err := facilities.NewService(facilities.ServiceParams{
		DB:            dbClient,
		Repo:          facilityRepo,
		Academies:     academyRepo,
		Subscriptions: subscriptionRepo,
		Payments:      paymentRepo,
		Outbox:        emitter,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	academySvc, err := academies.NewService(academies.ServiceParams{
		DB:            dbClient,
		Repo:          academyRepo,
		Facilities:    facilityRepo,
		Subscriptions: subscriptionRepo,
		Payments:      paymentRepo,
		Outbox:        emitter,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		DB:     dbClient,
		Repo:   paymentRepo,
		Outbox: emitter,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	subscriptionSvc, err := subscriptions.NewService(subscriptions.ServiceParams{Repo: subscriptionRepo})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Bookings:      bookingSvc,
		Members:       memberSvc,
		Facilities:    facilitySvc,
		Academies:     academySvc,
		Payments:      paymentSvc,
		Subscriptions: subscriptionSvc,
		DeadLetters:   outbox.NewDLQRepository(conn),
	}, nil
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Fatal(context.Background(), msg, err)
}
