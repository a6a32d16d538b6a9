package academies

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/repo"
	"github.com/sportsarena/membership-backend/pkg/db/models"
)

// Repository persists academies.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, academy *models.Academy) error
	Update(ctx context.Context, academy *models.Academy) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Academy, error)
	List(ctx context.Context, facilityID *uuid.UUID) ([]models.Academy, error)
	CountByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Tx(tx)}
}

func (r *repository) Create(ctx context.Context, academy *models.Academy) error {
	return r.base.DB(ctx).Create(academy).Error
}

func (r *repository) Update(ctx context.Context, academy *models.Academy) error {
	return r.base.DB(ctx).Save(academy).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Academy, error) {
	return repo.First[models.Academy](r.base.DB(ctx).Where("id = ?", id))
}

func (r *repository) List(ctx context.Context, facilityID *uuid.UUID) ([]models.Academy, error) {
	query := r.base.DB(ctx)
	if facilityID != nil {
		query = query.Where("facility_id = ?", *facilityID)
	}
	var rows []models.Academy
	err := query.Order("name ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) CountByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Academy{}).Where("facility_id = ?", facilityID).Count(&count).Error
	return count, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("id = ?", id).Delete(&models.Academy{})
	return result.RowsAffected, result.Error
}
