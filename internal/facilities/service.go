package facilities

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/payments"
	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/auth"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/outbox"
	"github.com/sportsarena/membership-backend/pkg/outbox/payloads"
)

// FacilityInput carries the editable facility fields.
type FacilityInput struct {
	Name        string
	Description string
	Active      *bool
}

// PlanInput carries the editable plan fields.
type PlanInput struct {
	PlanType       enums.PlanType
	Name           string
	Fee            decimal.Decimal
	DurationMonths *int
	Active         *bool
}

// AcademyCounter reports how many academies rent a facility.
type AcademyCounter interface {
	CountByFacility(ctx context.Context, facilityID uuid.UUID) (int64, error)
}

// Service manages facilities and their priced plans.
type Service interface {
	CreateFacility(ctx context.Context, actor auth.Actor, input FacilityInput) (*models.Facility, error)
	GetFacility(ctx context.Context, id uuid.UUID) (*models.Facility, error)
	ListFacilities(ctx context.Context, activeOnly bool) ([]models.Facility, error)
	UpdateFacility(ctx context.Context, actor auth.Actor, id uuid.UUID, input FacilityInput) (*models.Facility, error)
	DeleteFacility(ctx context.Context, actor auth.Actor, id uuid.UUID) (*payloads.FacilityDeletedEvent, error)

	CreatePlan(ctx context.Context, actor auth.Actor, facilityID uuid.UUID, input PlanInput) (*models.FacilityPlan, error)
	ListPlans(ctx context.Context, facilityID uuid.UUID, activeOnly bool) ([]models.FacilityPlan, error)
	UpdatePlan(ctx context.Context, actor auth.Actor, facilityID, planID uuid.UUID, input PlanInput) (*models.FacilityPlan, error)
}

type ServiceParams struct {
	DB            db.TxRunner
	Repo          Repository
	Academies     AcademyCounter
	Subscriptions subscriptions.Repository
	Payments      payments.Repository
	Outbox        outbox.Emitter
}

type service struct {
	db            db.TxRunner
	repo          Repository
	academies     AcademyCounter
	subscriptions subscriptions.Repository
	payments      payments.Repository
	outbox        outbox.Emitter
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("transaction runner is required")
	case params.Repo == nil:
		return nil, errors.New("facility repository is required")
	case params.Academies == nil:
		return nil, errors.New("academy counter is required")
	case params.Subscriptions == nil:
		return nil, errors.New("subscription repository is required")
	case params.Payments == nil:
		return nil, errors.New("payment repository is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter is required")
	}
	return &service{
		db:            params.DB,
		repo:          params.Repo,
		academies:     params.Academies,
		subscriptions: params.Subscriptions,
		payments:      params.Payments,
		outbox:        params.Outbox,
	}, nil
}

func requireAdmin(actor auth.Actor) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func (in FacilityInput) apply(facility *models.Facility) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "facility name is required")
	}
	facility.Name = name
	facility.Description = lo.EmptyableToPtr(strings.TrimSpace(in.Description))
	if in.Active != nil {
		facility.Active = *in.Active
	}
	return nil
}

func (in PlanInput) apply(plan *models.FacilityPlan) error {
	if !in.PlanType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown plan type %q", in.PlanType)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
	}
	if !in.Fee.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan fee must be greater than zero")
	}
	if in.DurationMonths != nil && *in.DurationMonths <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "duration_months must be positive")
	}
	plan.PlanType = in.PlanType
	plan.Name = name
	plan.Fee = in.Fee.Round(2)
	plan.DurationMonths = in.DurationMonths
	if in.Active != nil {
		plan.Active = *in.Active
	}
	return nil
}

func (s *service) CreateFacility(ctx context.Context, actor auth.Actor, input FacilityInput) (*models.Facility, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	facility := &models.Facility{Active: true}
	if err := input.apply(facility); err != nil {
		return nil, err
	}
	if err := s.repo.CreateFacility(ctx, facility); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a facility with this name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create facility")
	}
	return facility, nil
}

func (s *service) GetFacility(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	facility, err := s.repo.FindFacility(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load facility")
	}
	if facility == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
	}
	return facility, nil
}

func (s *service) ListFacilities(ctx context.Context, activeOnly bool) ([]models.Facility, error) {
	rows, err := s.repo.ListFacilities(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list facilities")
	}
	return rows, nil
}

func (s *service) UpdateFacility(ctx context.Context, actor auth.Actor, id uuid.UUID, input FacilityInput) (*models.Facility, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	facility, err := s.GetFacility(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.apply(facility); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFacility(ctx, facility); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a facility with this name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update facility")
	}
	return facility, nil
}

// DeleteFacility removes the facility, its plans and every subscription and
// payment recorded against it. Facilities still rented by an academy are
// rejected until those academies are removed.
func (s *service) DeleteFacility(ctx context.Context, actor auth.Actor, id uuid.UUID) (*payloads.FacilityDeletedEvent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.GetFacility(ctx, id); err != nil {
		return nil, err
	}
	academies, err := s.academies.CountByFacility(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count academies")
	}
	if academies > 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "facility still has %d academies", academies)
	}

	summary := &payloads.FacilityDeletedEvent{FacilityID: id}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if summary.DeletedPayments, err = s.payments.WithTx(tx).DeleteByFacility(ctx, id); err != nil {
			return err
		}
		if summary.DeletedSubscriptions, err = s.subscriptions.WithTx(tx).DeleteByFacility(ctx, id); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		if summary.DeletedPlans, err = repo.DeletePlansByFacility(ctx, id); err != nil {
			return err
		}
		if _, err = repo.DeleteFacility(ctx, id); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFacilityDeleted,
			AggregateType: enums.AggregateFacility,
			AggregateID:   id,
			Actor:         actor.OutboxRef(),
			Data:          summary,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete facility")
	}
	return summary, nil
}

func (s *service) CreatePlan(ctx context.Context, actor auth.Actor, facilityID uuid.UUID, input PlanInput) (*models.FacilityPlan, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.GetFacility(ctx, facilityID); err != nil {
		return nil, err
	}
	plan := &models.FacilityPlan{FacilityID: facilityID, Active: true}
	if err := input.apply(plan); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan")
	}
	return plan, nil
}

func (s *service) ListPlans(ctx context.Context, facilityID uuid.UUID, activeOnly bool) ([]models.FacilityPlan, error) {
	if _, err := s.GetFacility(ctx, facilityID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListPlans(ctx, facilityID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return rows, nil
}

// UpdatePlan edits a plan in place. Fees already charged are not touched.
func (s *service) UpdatePlan(ctx context.Context, actor auth.Actor, facilityID, planID uuid.UUID, input PlanInput) (*models.FacilityPlan, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	plan, err := s.repo.FindPlan(ctx, planID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if plan == nil || plan.FacilityID != facilityID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if err := input.apply(plan); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePlan(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
	}
	return plan, nil
}
