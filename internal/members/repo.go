package members

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/repo"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

// ListFilter narrows member listings.
type ListFilter struct {
	Kind   *enums.MemberKind
	Search string
	Cursor *pagination.Cursor
	Limit  int
}

// Repository persists members and guests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) error
	Update(ctx context.Context, member *models.Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	List(ctx context.Context, filter ListFilter) ([]models.Member, error)
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

func (r *repository) Create(ctx context.Context, member *models.Member) error {
	return r.base.DB(ctx).Create(member).Error
}

func (r *repository) Update(ctx context.Context, member *models.Member) error {
	return r.base.DB(ctx).Save(member).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return repo.First[models.Member](r.base.DB(ctx).Where("id = ?", id))
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Member, error) {
	query := r.base.DB(ctx).Model(&models.Member{})
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR phone LIKE ?", like, like)
	}

	var rows []models.Member
	err := query.Scopes(pagination.Keyset(filter.Cursor, filter.Limit)).Find(&rows).Error
	return rows, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.base.DB(ctx).Where("id = ?", id).Delete(&models.Member{})
	return result.RowsAffected, result.Error
}
