package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// Subscription is one payer's access window for one facility. Rows are kept
// as history; the latest created row per (payer, facility) is the current one.
type Subscription struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	PayerType      enums.PayerType          `gorm:"column:payer_type;type:varchar(16);not null"`
	PayerID        uuid.UUID                `gorm:"column:payer_id;type:uuid;not null;index:idx_subscriptions_payer_facility,priority:1"`
	FacilityID     uuid.UUID                `gorm:"column:facility_id;type:uuid;not null;index:idx_subscriptions_payer_facility,priority:2"`
	PlanID         *uuid.UUID               `gorm:"column:plan_id;type:uuid"`
	PlanType       enums.PlanType           `gorm:"column:plan_type;type:varchar(32);not null"`
	StartDate      time.Time                `gorm:"column:start_date;type:date;not null"`
	EndDate        time.Time                `gorm:"column:end_date;type:date;not null;index"`
	Status         enums.SubscriptionStatus `gorm:"column:status;type:varchar(16);not null"`
	LastPaymentID  *uuid.UUID               `gorm:"column:last_payment_id;type:uuid"`
	CreatedBy      string                   `gorm:"column:created_by;not null"`
	ExtendedBy     *string                  `gorm:"column:extended_by"`
	ExtendedAt     *time.Time               `gorm:"column:extended_at"`
	ExtensionCount int                      `gorm:"column:extension_count;not null;default:0"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
