package sequence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
)

// incrementSQL creates the counter row on first use and bumps it atomically
// otherwise. The row lock it takes is held until the surrounding transaction
// ends, so concurrent bookings queue on it instead of reading the same value.
const incrementSQL = `INSERT INTO invoice_counters (billing_domain, last_invoice, updated_at)
VALUES (?, 1, CURRENT_TIMESTAMP)
ON CONFLICT (billing_domain) DO UPDATE
SET last_invoice = invoice_counters.last_invoice + 1, updated_at = CURRENT_TIMESTAMP
RETURNING last_invoice`

// Repository persists invoice counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Increment(ctx context.Context, domain enums.BillingDomain) (int64, error)
	Current(ctx context.Context, domain enums.BillingDomain) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a counter repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Increment(ctx context.Context, domain enums.BillingDomain) (int64, error) {
	var value int64
	result := r.db.WithContext(ctx).Raw(incrementSQL, domain).Scan(&value)
	if result.Error != nil {
		return 0, result.Error
	}
	if value <= 0 {
		return 0, errors.New("invoice counter increment returned no value")
	}
	return value, nil
}

// Current returns the last issued number, or 0 when the domain has never billed.
func (r *repository) Current(ctx context.Context, domain enums.BillingDomain) (int64, error) {
	var counter models.InvoiceCounter
	err := r.db.WithContext(ctx).Where("billing_domain = ?", domain).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.LastInvoice, nil
}
