package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/outbox"
	"github.com/sportsarena/membership-backend/pkg/outbox/payloads"
)

const (
	defaultExpiryBatch = 200
	// maxExpiryBatches caps one run so a backlog cannot hold the lock forever.
	maxExpiryBatches = 50
)

// SubscriptionExpiryJobParams configures the expiry sweep.
type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	DB            db.TxRunner
	Subscriptions subscriptions.Repository
	Outbox        outbox.Emitter
	Location      *time.Location
	BatchSize     int
	Now           func() time.Time
}

// NewSubscriptionExpiryJob flips active subscriptions whose end date has
// passed to expired, one batch per transaction.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionExpiryJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Subscriptions,
		outbox: params.Outbox,
		loc:    loc,
		batch:  batch,
		now:    now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg   *logger.Logger
	db     db.TxRunner
	repo   subscriptions.Repository
	outbox outbox.Emitter
	loc    *time.Location
	batch  int
	now    func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

func (j *subscriptionExpiryJob) Run(ctx context.Context) (int64, error) {
	today := subscriptions.Today(j.now(), j.loc)

	var total int64
	for i := 0; i < maxExpiryBatches; i++ {
		expired, scanned, err := j.expireBatch(ctx, today)
		total += expired
		if err != nil {
			return total, err
		}
		if scanned < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"today":   today.Format(subscriptions.DateLayout),
		"expired": total,
	})
	j.logg.Info(logCtx, "subscription expiry sweep complete")
	return total, nil
}

func (j *subscriptionExpiryJob) expireBatch(ctx context.Context, today time.Time) (int64, int, error) {
	var (
		expired int64
		scanned int
	)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		due, err := repo.ListExpirable(ctx, today, j.batch)
		if err != nil {
			return fmt.Errorf("list expirable: %w", err)
		}
		scanned = len(due)
		if scanned == 0 {
			return nil
		}
		ids := lo.Map(due, func(s models.Subscription, _ int) uuid.UUID { return s.ID })
		changed, err := repo.MarkExpired(ctx, ids, today)
		if err != nil {
			return fmt.Errorf("mark expired: %w", err)
		}
		expired = int64(len(changed))
		for _, sub := range due {
			if !lo.Contains(changed, sub.ID) {
				continue
			}
			if err := j.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSubscriptionExpired,
				AggregateType: enums.AggregateSubscription,
				AggregateID:   sub.ID,
				Data: payloads.SubscriptionExpiredEvent{
					SubscriptionID: sub.ID,
					PayerID:        sub.PayerID,
					FacilityID:     sub.FacilityID,
					EndDate:        sub.EndDate.Format(subscriptions.DateLayout),
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return expired, scanned, nil
}
