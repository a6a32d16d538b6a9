package academies

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

// Input carries the editable academy fields.
type Input struct {
	Name        string
	ContactName string
	Phone       string
	Email       string
	FacilityID  uuid.UUID
	MonthlyFee  decimal.Decimal
	Active      *bool
}

// FacilityFinder resolves the facility an academy rents.
type FacilityFinder interface {
	FindFacility(ctx context.Context, id uuid.UUID) (*models.Facility, error)
}

// Service manages academies. All writes are admin-only.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input Input) (*models.Academy, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Academy, error)
	List(ctx context.Context, facilityID *uuid.UUID) ([]models.Academy, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input Input) (*models.Academy, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*payloads.PayerDeletedEvent, error)
}

type ServiceParams struct {
	DB            db.TxRunner
	Repo          Repository
	Facilities    FacilityFinder
	Subscriptions subscriptions.Repository
	Payments      payments.Repository
	Outbox        outbox.Emitter
}

type service struct {
	db            db.TxRunner
	repo          Repository
	facilities    FacilityFinder
	subscriptions subscriptions.Repository
	payments      payments.Repository
	outbox        outbox.Emitter
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("transaction runner is required")
	case params.Repo == nil:
		return nil, errors.New("academy repository is required")
	case params.Facilities == nil:
		return nil, errors.New("facility finder is required")
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
		facilities:    params.Facilities,
		subscriptions: params.Subscriptions,
		payments:      params.Payments,
		outbox:        params.Outbox,
	}, nil
}

func (s *service) apply(ctx context.Context, in Input, academy *models.Academy) error {
	name := strings.TrimSpace(in.Name)
	contact := strings.TrimSpace(in.ContactName)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || contact == "" || phone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name, contact name and phone are required")
	}
	if !in.MonthlyFee.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "monthly fee must be greater than zero")
	}
	if in.FacilityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "facility_id is required")
	}
	facility, err := s.facilities.FindFacility(ctx, in.FacilityID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load facility")
	}
	if facility == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
	}

	academy.Name = name
	academy.ContactName = contact
	academy.Phone = phone
	academy.Email = lo.EmptyableToPtr(strings.TrimSpace(in.Email))
	academy.FacilityID = in.FacilityID
	academy.MonthlyFee = in.MonthlyFee.Round(2)
	if in.Active != nil {
		academy.Active = *in.Active
	}
	return nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input Input) (*models.Academy, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	academy := &models.Academy{Active: true, CreatedBy: actor.StaffID}
	if err := s.apply(ctx, input, academy); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, academy); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create academy")
	}
	return academy, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Academy, error) {
	academy, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load academy")
	}
	if academy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "academy not found")
	}
	return academy, nil
}

func (s *service) List(ctx context.Context, facilityID *uuid.UUID) ([]models.Academy, error) {
	rows, err := s.repo.List(ctx, facilityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list academies")
	}
	return rows, nil
}

// Update edits the academy. A new fee applies to future bookings only.
func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input Input) (*models.Academy, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	academy, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, input, academy); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, academy); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update academy")
	}
	return academy, nil
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*payloads.PayerDeletedEvent, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	summary := &payloads.PayerDeletedEvent{PayerType: enums.PayerTypeAcademy, PayerID: id}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if summary.DeletedPayments, err = s.payments.WithTx(tx).DeleteByPayer(ctx, id); err != nil {
			return err
		}
		if summary.DeletedSubscriptions, err = s.subscriptions.WithTx(tx).DeleteByPayer(ctx, id); err != nil {
			return err
		}
		if _, err = s.repo.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayerDeleted,
			AggregateType: enums.AggregateAcademy,
			AggregateID:   id,
			Actor:         actor.OutboxRef(),
			Data:          summary,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete academy")
	}
	return summary, nil
}
