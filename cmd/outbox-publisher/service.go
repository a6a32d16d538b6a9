package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/outbox/publishguard"
	"github.com/sportsarena/membership-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxErrorBackoff       = 10 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

// publishGuard remembers events Pub/Sub already acknowledged, so a batch
// whose transaction rolled back after publishing does not publish them again.
type publishGuard interface {
	Published(ctx context.Context, topic string, eventID uuid.UUID) (*publishguard.Receipt, error)
	Record(ctx context.Context, topic string, eventID uuid.UUID, messageID string) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Guard            publishGuard
}

// Service drains the outbox table onto Pub/Sub.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	pubsub       pubSubClient
	registry     registryResolver
	dlq          dlqRepository
	guard        publishGuard
	publishers   publisherFactory
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"config":            params.Config != nil,
		"logger":            params.Logger != nil,
		"database client":   params.DB != nil,
		"pubsub client":     params.PubSub != nil,
		"outbox repository": params.Repository != nil,
		"event registry":    params.Registry != nil,
		"dlq repository":    params.DLQRepository != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("outbox publisher: missing %v", missing)
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = gcpPublishers(params.PubSub)
	}

	outboxCfg := params.Config.Outbox
	s := &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		guard:        params.Guard,
		publishers:   factory,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		pollInterval: defaultPollInterval,
	}
	if outboxCfg.BatchSize > 0 {
		s.batchSize = outboxCfg.BatchSize
	}
	if outboxCfg.MaxAttempts > 0 {
		s.maxAttempts = outboxCfg.MaxAttempts
	}
	if outboxCfg.PollIntervalMS > 0 {
		s.pollInterval = time.Duration(outboxCfg.PollIntervalMS) * time.Millisecond
	}
	return s, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	return nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next one; a partial batch means the queue is drained and the loop waits
// pollInterval. Batch errors back off exponentially up to maxErrorBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	onError := backoff.NewExponentialBackOff()
	onError.InitialInterval = s.pollInterval
	onError.MaxInterval = maxErrorBackoff
	onError.MaxElapsedTime = 0
	onError.Reset()

	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		stats, err := s.processBatch(ctx)
		if stats.fetched > 0 {
			s.logg.Info(s.logg.WithFields(ctx, stats.fields()), "outbox.batch")
		}

		wait := s.pollInterval
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = onError.NextBackOff()
		case stats.fetched >= s.batchSize:
			onError.Reset()
			continue
		default:
			onError.Reset()
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var errNoPublisher = errors.New("publisher not configured")
