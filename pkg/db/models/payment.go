package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// Payment is one recorded monetary transaction. After insert only the status
// and the administrative fields (amount, method, period label) change.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BillingDomain   enums.BillingDomain `gorm:"column:billing_domain;type:varchar(32);not null;uniqueIndex:uq_payments_domain_invoice,priority:1"`
	InvoiceNumber   string              `gorm:"column:invoice_number;type:varchar(32);not null;uniqueIndex:uq_payments_domain_invoice,priority:2"`
	InvoiceSequence int64               `gorm:"column:invoice_sequence;not null"`
	PayerType       enums.PayerType     `gorm:"column:payer_type;type:varchar(16);not null"`
	PayerID         uuid.UUID           `gorm:"column:payer_id;type:uuid;not null;index"`
	FacilityID      uuid.UUID           `gorm:"column:facility_id;type:uuid;not null;index"`
	PlanID          *uuid.UUID          `gorm:"column:plan_id;type:uuid"`
	PlanType        enums.PlanType      `gorm:"column:plan_type;type:varchar(32);not null"`
	PeriodLabel     string              `gorm:"column:period_label;not null"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method          enums.PaymentMethod `gorm:"column:method;type:varchar(32);not null"`
	Reference       string              `gorm:"column:reference;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;type:varchar(16);not null;index"`
	SubscriptionID  uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null;index"`
	SubscriptionRef string              `gorm:"column:subscription_ref;not null"`
	RecordedBy      string              `gorm:"column:recorded_by;not null"`
	PaidOn          time.Time           `gorm:"column:paid_on;type:date;not null"`
	StatusChangedBy *string             `gorm:"column:status_changed_by"`
	StatusChangedAt *time.Time          `gorm:"column:status_changed_at"`
	EditedBy        *string             `gorm:"column:edited_by"`
	EditedAt        *time.Time          `gorm:"column:edited_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
