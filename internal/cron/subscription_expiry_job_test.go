package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/db/dbtest"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/outbox"
)

func TestSubscriptionExpiryJobExpiresPastWindows(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	repo := subscriptions.NewRepository(conn)

	seed := func(end string, status enums.SubscriptionStatus) uuid.UUID {
		endDate, err := subscriptions.ParseDate(end)
		require.NoError(t, err)
		sub := &models.Subscription{
			PayerType: enums.PayerTypeMember, PayerID: uuid.New(), FacilityID: uuid.New(),
			PlanType: enums.PlanTypeOneMonth, StartDate: endDate.AddDate(0, -1, 0), EndDate: endDate,
			Status: status, CreatedBy: "staff-1",
		}
		require.NoError(t, repo.Create(ctx, sub))
		return sub.ID
	}
	past1 := seed("2026-02-01", enums.SubscriptionStatusActive)
	past2 := seed("2026-02-09", enums.SubscriptionStatusActive)
	endsToday := seed("2026-02-10", enums.SubscriptionStatusActive)
	already := seed("2026-01-01", enums.SubscriptionStatusExpired)

	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:        logger.Nop(),
		DB:            db.NewFromConn(conn),
		Subscriptions: repo,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), nil),
		BatchSize:     1,
		Now:           func() time.Time { return time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	rows, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)

	status := func(id uuid.UUID) enums.SubscriptionStatus {
		sub, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		return sub.Status
	}
	assert.Equal(t, enums.SubscriptionStatusExpired, status(past1))
	assert.Equal(t, enums.SubscriptionStatusExpired, status(past2))
	assert.Equal(t, enums.SubscriptionStatusActive, status(endsToday))
	assert.Equal(t, enums.SubscriptionStatusExpired, status(already))

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventSubscriptionExpired).Count(&events).Error)
	assert.Equal(t, int64(2), events)

	rows, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

// extendingRepo books an extension for one row right after the sweep lists it.
type extendingRepo struct {
	subscriptions.Repository
	target uuid.UUID
	newEnd time.Time
}

func (r *extendingRepo) WithTx(tx *gorm.DB) subscriptions.Repository {
	return &extendingRepo{Repository: r.Repository.WithTx(tx), target: r.target, newEnd: r.newEnd}
}

func (r *extendingRepo) ListExpirable(ctx context.Context, today time.Time, limit int) ([]models.Subscription, error) {
	due, err := r.Repository.ListExpirable(ctx, today, limit)
	if err != nil {
		return nil, err
	}
	sub, err := r.Repository.FindByID(ctx, r.target)
	if err != nil || sub == nil {
		return due, err
	}
	sub.EndDate = r.newEnd
	return due, r.Repository.Update(ctx, sub)
}

func TestSubscriptionExpiryJobSkipsWindowExtendedMidSweep(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	base := subscriptions.NewRepository(conn)

	start, err := subscriptions.ParseDate("2025-12-01")
	require.NoError(t, err)
	sub := &models.Subscription{
		PayerType: enums.PayerTypeMember, PayerID: uuid.New(), FacilityID: uuid.New(),
		PlanType: enums.PlanTypeOneMonth, StartDate: start, EndDate: start.AddDate(0, 1, 0),
		Status: enums.SubscriptionStatusActive, CreatedBy: "staff-1",
	}
	require.NoError(t, base.Create(ctx, sub))
	newEnd, err := subscriptions.ParseDate("2026-03-01")
	require.NoError(t, err)

	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:        logger.Nop(),
		DB:            db.NewFromConn(conn),
		Subscriptions: &extendingRepo{Repository: base, target: sub.ID, newEnd: newEnd},
		Outbox:        outbox.NewService(outbox.NewRepository(conn), nil),
		Now:           func() time.Time { return time.Date(2026, 2, 3, 6, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	rows, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rows)

	got, err := base.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, got.Status)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventSubscriptionExpired).Count(&events).Error)
	assert.Zero(t, events)
}
