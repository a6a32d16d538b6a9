package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/repo"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Subscription, error)
	FindCurrent(ctx context.Context, payerID, facilityID uuid.UUID) (*models.Subscription, error)
	ListExpirable(ctx context.Context, today time.Time, limit int) ([]models.Subscription, error)
	MarkExpired(ctx context.Context, ids []uuid.UUID, today time.Time) ([]uuid.UUID, error)
	DeleteByPayer(ctx context.Context, payerID uuid.UUID) (int64, error)
	DeleteByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Tx(tx)}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.base.DB(ctx).Create(sub).Error
}

func (r *repository) Update(ctx context.Context, sub *models.Subscription) error {
	return r.base.DB(ctx).Save(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return repo.First[models.Subscription](r.base.DB(ctx).Where("id = ?", id))
}

// FindByIDForUpdate row-locks the subscription on Postgres so two extensions
// of the same window cannot interleave.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return repo.First[models.Subscription](r.base.ForUpdate(r.base.DB(ctx).Where("id = ?", id)))
}

func (r *repository) ListByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.base.DB(ctx).
		Where("payer_id = ?", payerID).
		Order("created_at DESC, id DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// FindCurrent returns the latest created subscription for the pair; older
// rows are history.
func (r *repository) FindCurrent(ctx context.Context, payerID, facilityID uuid.UUID) (*models.Subscription, error) {
	return repo.First[models.Subscription](r.base.DB(ctx).
		Where("payer_id = ? AND facility_id = ?", payerID, facilityID).
		Order("created_at DESC, id DESC"))
}

// ListExpirable row-locks the batch on Postgres so an extension booked during
// the sweep waits for it.
func (r *repository) ListExpirable(ctx context.Context, today time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 500
	}
	var subs []models.Subscription
	if err := r.base.ForUpdate(r.base.DB(ctx)).
		Where("status = ? AND end_date < ?", enums.SubscriptionStatusActive, today).
		Order("end_date ASC, id ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// MarkExpired flips the given rows that are still active and still past their
// window, and returns the ids it actually changed. A row extended after it was
// listed keeps its status.
func (r *repository) MarkExpired(ctx context.Context, ids []uuid.UUID, today time.Time) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var changed []uuid.UUID
	if err := r.base.ForUpdate(r.base.DB(ctx)).
		Model(&models.Subscription{}).
		Where("id IN ? AND status = ? AND end_date < ?", ids, enums.SubscriptionStatusActive, today).
		Order("id ASC").
		Pluck("id", &changed).Error; err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, nil
	}
	if err := r.base.DB(ctx).
		Model(&models.Subscription{}).
		Where("id IN ? AND status = ?", changed, enums.SubscriptionStatusActive).
		Update("status", enums.SubscriptionStatusExpired).Error; err != nil {
		return nil, err
	}
	return changed, nil
}

func (r *repository) DeleteByPayer(ctx context.Context, payerID uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("payer_id = ?", payerID).Delete(&models.Subscription{})
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("facility_id = ?", facilityID).Delete(&models.Subscription{})
	return result.RowsAffected, result.Error
}
