package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// Facility is a bookable part of the complex (pool, gym, courts).
type Facility struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null;uniqueIndex"`
	Description *string   `gorm:"column:description"`
	Active      bool      `gorm:"column:active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (f *Facility) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FacilityPlan prices one plan type for one facility. DurationMonths, when
// set, overrides the duration inferred from PlanType.
type FacilityPlan struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	FacilityID     uuid.UUID       `gorm:"column:facility_id;type:uuid;not null;index"`
	PlanType       enums.PlanType  `gorm:"column:plan_type;type:varchar(32);not null"`
	Name           string          `gorm:"column:name;not null"`
	Fee            decimal.Decimal `gorm:"column:fee;type:numeric(12,2);not null"`
	DurationMonths *int            `gorm:"column:duration_months"`
	Active         bool            `gorm:"column:active;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (FacilityPlan) TableName() string {
	return "facility_plans"
}

func (p *FacilityPlan) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
