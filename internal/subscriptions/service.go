package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sportsarena/membership-backend/pkg/db/models"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
)

// Service exposes read access to subscription windows.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Subscription, error)
	Current(ctx context.Context, payerID, facilityID uuid.UUID) (*models.Subscription, error)
	ProposeNextStart(ctx context.Context, id uuid.UUID) (time.Time, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo Repository
}

type service struct {
	repo Repository
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("subscription repository is required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

func (s *service) ListByPayer(ctx context.Context, payerID uuid.UUID) ([]models.Subscription, error) {
	if payerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer_id is required")
	}
	subs, err := s.repo.ListByPayer(ctx, payerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, nil
}

func (s *service) Current(ctx context.Context, payerID, facilityID uuid.UUID) (*models.Subscription, error) {
	if payerID == uuid.Nil || facilityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer_id and facility_id are required")
	}
	sub, err := s.repo.FindCurrent(ctx, payerID, facilityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription for payer and facility")
	}
	return sub, nil
}

// ProposeNextStart suggests where an extension of the subscription should begin.
func (s *service) ProposeNextStart(ctx context.Context, id uuid.UUID) (time.Time, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return NextStart(sub.EndDate), nil
}
