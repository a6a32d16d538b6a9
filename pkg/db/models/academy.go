package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Academy is a third-party coaching organisation renting a facility.
type Academy struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	ContactName string          `gorm:"column:contact_name;not null"`
	Phone       string          `gorm:"column:phone;not null"`
	Email       *string         `gorm:"column:email"`
	FacilityID  uuid.UUID       `gorm:"column:facility_id;type:uuid;not null;index"`
	MonthlyFee  decimal.Decimal `gorm:"column:monthly_fee;type:numeric(12,2);not null"`
	Active      bool            `gorm:"column:active;not null"`
	CreatedBy   string          `gorm:"column:created_by;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Academy) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
