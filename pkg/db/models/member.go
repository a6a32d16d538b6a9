package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// Member is a registered member or a walk-in guest.
type Member struct {
	ID                    uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Kind                  enums.MemberKind `gorm:"column:kind;type:varchar(16);not null;index"`
	FullName              string           `gorm:"column:full_name;not null"`
	Phone                 string           `gorm:"column:phone;not null;index"`
	Email                 *string          `gorm:"column:email"`
	Gender                *string          `gorm:"column:gender"`
	DateOfBirth           *time.Time       `gorm:"column:date_of_birth;type:date"`
	Address               *string          `gorm:"column:address"`
	EmergencyContactName  *string          `gorm:"column:emergency_contact_name"`
	EmergencyContactPhone *string          `gorm:"column:emergency_contact_phone"`
	Notes                 *string          `gorm:"column:notes"`
	CreatedBy             string           `gorm:"column:created_by;not null"`
	CreatedAt             time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Member) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
