package facilities

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/repo"
	"github.com/sportsarena/membership-backend/pkg/db/models"
)

// Repository persists facilities and their plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateFacility(ctx context.Context, facility *models.Facility) error
	UpdateFacility(ctx context.Context, facility *models.Facility) error
	FindFacility(ctx context.Context, id uuid.UUID) (*models.Facility, error)
	ListFacilities(ctx context.Context, activeOnly bool) ([]models.Facility, error)
	DeleteFacility(ctx context.Context, id uuid.UUID) (int64, error)

	CreatePlan(ctx context.Context, plan *models.FacilityPlan) error
	UpdatePlan(ctx context.Context, plan *models.FacilityPlan) error
	FindPlan(ctx context.Context, id uuid.UUID) (*models.FacilityPlan, error)
	ListPlans(ctx context.Context, facilityID uuid.UUID, activeOnly bool) ([]models.FacilityPlan, error)
	DeletePlansByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error)
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

func (r *repository) CreateFacility(ctx context.Context, facility *models.Facility) error {
	return r.base.DB(ctx).Create(facility).Error
}

func (r *repository) UpdateFacility(ctx context.Context, facility *models.Facility) error {
	return r.base.DB(ctx).Save(facility).Error
}

func (r *repository) FindFacility(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	return repo.First[models.Facility](r.base.DB(ctx).Where("id = ?", id))
}

func (r *repository) ListFacilities(ctx context.Context, activeOnly bool) ([]models.Facility, error) {
	query := r.base.DB(ctx)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.Facility
	err := query.Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) DeleteFacility(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("id = ?", id).Delete(&models.Facility{})
	return result.RowsAffected, result.Error
}

func (r *repository) CreatePlan(ctx context.Context, plan *models.FacilityPlan) error {
	return r.base.DB(ctx).Create(plan).Error
}

func (r *repository) UpdatePlan(ctx context.Context, plan *models.FacilityPlan) error {
	return r.base.DB(ctx).Save(plan).Error
}

func (r *repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.FacilityPlan, error) {
	return repo.First[models.FacilityPlan](r.base.DB(ctx).Where("id = ?", id))
}

func (r *repository) ListPlans(ctx context.Context, facilityID uuid.UUID, activeOnly bool) ([]models.FacilityPlan, error) {
	query := r.base.DB(ctx).Where("facility_id = ?", facilityID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.FacilityPlan
	err := query.Order("fee ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) DeletePlansByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("facility_id = ?", facilityID).Delete(&models.FacilityPlan{})
	return result.RowsAffected, result.Error
}
