package models

import (
	"time"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// InvoiceCounter is the single-row sequence behind one billing domain. The
// value only ever moves forward.
type InvoiceCounter struct {
	Domain      enums.BillingDomain `gorm:"column:billing_domain;type:varchar(32);primaryKey"`
	LastInvoice int64               `gorm:"column:last_invoice;not null;default:0"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (InvoiceCounter) TableName() string {
	return "invoice_counters"
}
