package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/repo"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

// Filter narrows payment listings. Zero values are ignored.
type Filter struct {
	PayerID       *uuid.UUID
	FacilityID    *uuid.UUID
	BillingDomain *enums.BillingDomain
	Status        *enums.PaymentStatus
	Method        *enums.PaymentMethod
	PaidFrom      *time.Time
	PaidTo        *time.Time
	Cursor        *pagination.Cursor
	Limit         int
}

// Repository persists payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByInvoice(ctx context.Context, domain enums.BillingDomain, number string) (*models.Payment, error)
	List(ctx context.Context, filter Filter) ([]models.Payment, error)
	ListForExport(ctx context.Context, from, to time.Time, domain *enums.BillingDomain) ([]models.Payment, error)
	CountByPayer(ctx context.Context, payerID uuid.UUID) (int64, error)
	DeleteByPayer(ctx context.Context, payerID uuid.UUID) (int64, error)
	DeleteByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Tx(tx)}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.base.DB(ctx).Create(payment).Error
}

func (r *repository) Update(ctx context.Context, payment *models.Payment) error {
	return r.base.DB(ctx).Save(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return repo.First[models.Payment](r.base.DB(ctx).Where("id = ?", id))
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return repo.First[models.Payment](r.base.ForUpdate(r.base.DB(ctx).Where("id = ?", id)))
}

func (r *repository) FindByInvoice(ctx context.Context, domain enums.BillingDomain, number string) (*models.Payment, error) {
	return repo.First[models.Payment](r.base.DB(ctx).
		Where("billing_domain = ? AND invoice_number = ?", domain, number))
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Payment, error) {
	query := r.base.DB(ctx).Model(&models.Payment{})
	if filter.PayerID != nil {
		query = query.Where("payer_id = ?", *filter.PayerID)
	}
	if filter.FacilityID != nil {
		query = query.Where("facility_id = ?", *filter.FacilityID)
	}
	if filter.BillingDomain != nil {
		query = query.Where("billing_domain = ?", *filter.BillingDomain)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Method != nil {
		query = query.Where("method = ?", *filter.Method)
	}
	if filter.PaidFrom != nil {
		query = query.Where("paid_on >= ?", *filter.PaidFrom)
	}
	if filter.PaidTo != nil {
		query = query.Where("paid_on <= ?", *filter.PaidTo)
	}

	var rows []models.Payment
	err := query.Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).Find(&rows).Error
	return rows, err
}

// ListForExport returns every payment paid within [from, to], in invoice order.
func (r *repository) ListForExport(ctx context.Context, from, to time.Time, domain *enums.BillingDomain) ([]models.Payment, error) {
	query := r.base.DB(ctx).Where("paid_on >= ? AND paid_on <= ?", from, to)
	if domain != nil {
		query = query.Where("billing_domain = ?", *domain)
	}
	var rows []models.Payment
	err := query.
		Order("billing_domain ASC").
		Order("invoice_sequence ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountByPayer(ctx context.Context, payerID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Payment{}).Where("payer_id = ?", payerID).Count(&count).Error
	return count, err
}

func (r *repository) DeleteByPayer(ctx context.Context, payerID uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("payer_id = ?", payerID).Delete(&models.Payment{})
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("facility_id = ?", facilityID).Delete(&models.Payment{})
	return result.RowsAffected, result.Error
}
