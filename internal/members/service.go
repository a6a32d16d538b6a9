package members

import (
	"context"
	"errors"

	"github.com/google/uuid"
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
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

// Service manages members and guests.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input Input) (*models.Member, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Member, error)
	Update(ctx context.Context, id uuid.UUID, input Input) (*models.Member, error)
	List(ctx context.Context, filter ListFilter) (pagination.Page[models.Member], error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*payloads.PayerDeletedEvent, error)
}

// ServiceParams groups the member service dependencies.
type ServiceParams struct {
	DB            db.TxRunner
	Repo          Repository
	Subscriptions subscriptions.Repository
	Payments      payments.Repository
	Outbox        outbox.Emitter
}

type service struct {
	db            db.TxRunner
	repo          Repository
	subscriptions subscriptions.Repository
	payments      payments.Repository
	outbox        outbox.Emitter
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("transaction runner is required")
	case params.Repo == nil:
		return nil, errors.New("member repository is required")
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
		subscriptions: params.Subscriptions,
		payments:      params.Payments,
		outbox:        params.Outbox,
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input Input) (*models.Member, error) {
	member, err := input.Build(actor.StaffID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, member); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberRegistered,
			AggregateType: enums.AggregateMember,
			AggregateID:   member.ID,
			Actor:         actor.OutboxRef(),
			Data: payloads.MemberRegisteredEvent{
				MemberID: member.ID,
				Kind:     member.Kind,
				FullName: member.FullName,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create member")
	}
	return member, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
	}
	if member == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	return member, nil
}

// Update replaces the profile fields. The kind may change, e.g. a guest
// upgrading to a full member, as long as the new kind's requirements hold.
func (s *service) Update(ctx context.Context, id uuid.UUID, input Input) (*models.Member, error) {
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.apply(member); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, member); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update member")
	}
	return member, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (pagination.Page[models.Member], error) {
	if filter.Kind != nil && !filter.Kind.IsValid() {
		return pagination.Page[models.Member]{}, pkgerrors.New(pkgerrors.CodeValidation, "kind must be member or guest")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Page[models.Member]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list members")
	}
	return pagination.Slice(rows, filter.Limit, func(m models.Member) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	}), nil
}

// Delete removes the member together with every subscription and payment
// recorded for them. Invoice counters are left untouched.
func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*payloads.PayerDeletedEvent, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can delete members")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := &payloads.PayerDeletedEvent{PayerType: member.Kind.PayerType(), PayerID: member.ID}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
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
			AggregateType: enums.AggregateMember,
			AggregateID:   id,
			Actor:         actor.OutboxRef(),
			Data:          summary,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete member")
	}
	return summary, nil
}
