package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/internal/academies"
	"github.com/sportsarena/membership-backend/internal/facilities"
	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/internal/payments"
	"github.com/sportsarena/membership-backend/internal/sequence"
	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/metrics"
	"github.com/sportsarena/membership-backend/pkg/outbox"
	"github.com/sportsarena/membership-backend/pkg/outbox/payloads"
)

// DefaultManualReferencePrefix tags manual payments recorded without a reference.
const DefaultManualReferencePrefix = "MAN"

// Service records payments and the subscriptions they fund.
type Service interface {
	// Book allocates the next invoice number, records the payment and creates
	// or extends the subscription as one unit. Conflicts are retried; on
	// failure nothing is written.
	Book(ctx context.Context, req Request) (*Receipt, error)
	// RegisterAndBook does the same for a payer that does not exist yet.
	RegisterAndBook(ctx context.Context, reg Registration) (*models.Member, *Receipt, error)
}

// ServiceParams groups the booking dependencies.
type ServiceParams struct {
	DB            db.TxRunner
	Allocator     sequence.Allocator
	Members       members.Repository
	Academies     academies.Repository
	Facilities    facilities.Repository
	Payments      payments.Repository
	Subscriptions subscriptions.Repository
	Outbox        outbox.Emitter
	Metrics       *metrics.BookingMetrics
	Logger        *logger.Logger

	Retry                 db.RetryOptions
	ManualReferencePrefix string
	Location              *time.Location
	Now                   func() time.Time
}

type service struct {
	db            db.TxRunner
	allocator     sequence.Allocator
	members       members.Repository
	academies     academies.Repository
	facilities    facilities.Repository
	payments      payments.Repository
	subscriptions subscriptions.Repository
	outbox        outbox.Emitter
	metrics       *metrics.BookingMetrics
	logg          *logger.Logger
	retry         db.RetryOptions
	manualPrefix  string
	loc           *time.Location
	now           func() time.Time
}

// NewService builds the booking service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("transaction runner is required")
	case params.Allocator == nil:
		return nil, errors.New("invoice allocator is required")
	case params.Members == nil:
		return nil, errors.New("members repository is required")
	case params.Academies == nil:
		return nil, errors.New("academies repository is required")
	case params.Facilities == nil:
		return nil, errors.New("facilities repository is required")
	case params.Payments == nil:
		return nil, errors.New("payments repository is required")
	case params.Subscriptions == nil:
		return nil, errors.New("subscriptions repository is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter is required")
	}

	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	prefix := strings.TrimSpace(params.ManualReferencePrefix)
	if prefix == "" {
		prefix = DefaultManualReferencePrefix
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		db:            params.DB,
		allocator:     params.Allocator,
		members:       params.Members,
		academies:     params.Academies,
		facilities:    params.Facilities,
		payments:      params.Payments,
		subscriptions: params.Subscriptions,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		logg:          logg,
		retry:         params.Retry,
		manualPrefix:  prefix,
		loc:           loc,
		now:           now,
	}, nil
}

func (s *service) Book(ctx context.Context, req Request) (*Receipt, error) {
	started := time.Now()

	p, err := s.prepare(ctx, req, true)
	if err != nil {
		s.metrics.ObserveAttempt(metrics.OutcomeRejected, time.Since(started))
		return nil, err
	}

	var receipt *Receipt
	err = s.db.WithRetryTx(ctx, s.retryOptions(ctx), func(tx *gorm.DB) error {
		var txErr error
		receipt, txErr = s.write(ctx, tx, p)
		return txErr
	})
	if err != nil {
		return nil, s.fail(ctx, started, err)
	}

	s.succeed(ctx, started, receipt)
	return receipt, nil
}

func (s *service) RegisterAndBook(ctx context.Context, reg Registration) (*models.Member, *Receipt, error) {
	started := time.Now()

	member, err := reg.Member.Build(reg.Booking.Actor.StaffID)
	if err != nil {
		s.metrics.ObserveAttempt(metrics.OutcomeRejected, time.Since(started))
		return nil, nil, err
	}
	req := reg.Booking
	req.PayerType = member.Kind.PayerType()
	req.PayerID = uuid.Nil
	req.SubscriptionID = nil

	p, err := s.prepare(ctx, req, false)
	if err != nil {
		s.metrics.ObserveAttempt(metrics.OutcomeRejected, time.Since(started))
		return nil, nil, err
	}

	var receipt *Receipt
	err = s.db.WithRetryTx(ctx, s.retryOptions(ctx), func(tx *gorm.DB) error {
		row := *member
		row.ID = uuid.New()
		if err := s.members.WithTx(tx).Create(ctx, &row); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMemberRegistered,
			AggregateType: enums.AggregateMember,
			AggregateID:   row.ID,
			Actor:         p.actor.OutboxRef(),
			Data: payloads.MemberRegisteredEvent{
				MemberID: row.ID,
				Kind:     row.Kind,
				FullName: row.FullName,
			},
		}); err != nil {
			return err
		}

		attempt := *p
		attempt.payerID = row.ID
		var txErr error
		receipt, txErr = s.write(ctx, tx, &attempt)
		if txErr == nil {
			*member = row
		}
		return txErr
	})
	if err != nil {
		return nil, nil, s.fail(ctx, started, err)
	}

	s.succeed(ctx, started, receipt)
	return member, receipt, nil
}

// prepare validates the request and resolves fee, plan and facility before
// any write happens.
func (s *service) prepare(ctx context.Context, req Request, payerExists bool) (*plan, error) {
	if strings.TrimSpace(req.Actor.StaffID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "acting staff member is required")
	}
	if !req.PayerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer_type must be member, guest or academy")
	}
	if payerExists && req.PayerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer_id is required")
	}
	if !req.Method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment method %q", req.Method)
	}
	start, err := subscriptions.ParseDate(req.StartDate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "start_date must be YYYY-MM-DD")
	}
	if req.DurationMonths != nil && *req.DurationMonths <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration_months must be positive")
	}

	reference := strings.TrimSpace(req.Reference)
	if req.Method.IsOnline() && reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "online payments require a transaction reference (UTR)")
	}
	if reference == "" {
		reference = s.manualReference()
	}

	p := &plan{
		payerType:      req.PayerType,
		payerID:        req.PayerID,
		facilityID:     req.FacilityID,
		planType:       req.PlanType,
		explicitMonths: req.DurationMonths,
		method:         req.Method,
		reference:      reference,
		start:          start,
		periodLabel:    strings.TrimSpace(req.PeriodLabel),
		subscriptionID: req.SubscriptionID,
		actor:          req.Actor,
	}

	var fee decimal.Decimal
	if req.PayerType == enums.PayerTypeAcademy {
		fee, err = s.resolveAcademy(ctx, p)
	} else {
		fee, err = s.resolveMember(ctx, p, payerExists)
	}
	if err != nil {
		return nil, err
	}
	if err := s.resolvePlan(ctx, p, req.PlanID, &fee); err != nil {
		return nil, err
	}

	if req.Amount != nil {
		fee = *req.Amount
	}
	if !fee.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fee amount must be greater than zero")
	}
	p.amount = fee.Round(2)

	if p.planType == "" {
		p.planType = enums.PlanTypeOneMonth
	}
	if !p.planType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown plan type %q", p.planType)
	}
	if p.periodLabel == "" {
		p.periodLabel = periodLabel(p)
	}
	return p, nil
}

func (s *service) resolveAcademy(ctx context.Context, p *plan) (decimal.Decimal, error) {
	academy, err := s.academies.FindByID(ctx, p.payerID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load academy")
	}
	if academy == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "academy not found")
	}
	if p.facilityID == uuid.Nil {
		p.facilityID = academy.FacilityID
	}
	if p.facilityID != academy.FacilityID {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "academy is not assigned to this facility")
	}
	return academy.MonthlyFee, s.requireFacility(ctx, p.facilityID)
}

func (s *service) resolveMember(ctx context.Context, p *plan, payerExists bool) (decimal.Decimal, error) {
	if p.facilityID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "facility_id is required")
	}
	if payerExists {
		member, err := s.members.FindByID(ctx, p.payerID)
		if err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member")
		}
		if member == nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
		}
		if member.Kind.PayerType() != p.payerType {
			return decimal.Zero, pkgerrors.Newf(pkgerrors.CodeValidation, "payer is a %s, not a %s", member.Kind, p.payerType)
		}
	}
	return decimal.Zero, s.requireFacility(ctx, p.facilityID)
}

func (s *service) requireFacility(ctx context.Context, id uuid.UUID) error {
	facility, err := s.facilities.FindFacility(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load facility")
	}
	if facility == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "facility not found")
	}
	if !facility.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "facility is not active")
	}
	return nil
}

func (s *service) resolvePlan(ctx context.Context, p *plan, planID *uuid.UUID, fee *decimal.Decimal) error {
	if planID == nil {
		return nil
	}
	fp, err := s.facilities.FindPlan(ctx, *planID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if fp == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if fp.FacilityID != p.facilityID {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan does not belong to this facility")
	}
	if !fp.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan is not active")
	}
	p.planID = &fp.ID
	p.planType = fp.PlanType
	if p.explicitMonths == nil {
		p.explicitMonths = fp.DurationMonths
	}
	*fee = fp.Fee
	return nil
}

// write performs the atomic part. It only touches tx, and runs again from the
// top when the transaction is retried.
func (s *service) write(ctx context.Context, tx *gorm.DB, p *plan) (*Receipt, error) {
	domain := p.payerType.BillingDomain()
	invoice, err := s.allocator.Next(ctx, tx, domain)
	if err != nil {
		return nil, err
	}

	now := s.now()
	end := subscriptions.EndDate(p.start, p.planType, p.explicitMonths)
	subRepo := s.subscriptions.WithTx(tx)

	var existing *models.Subscription
	subID := uuid.New()
	if p.subscriptionID != nil {
		existing, err = subRepo.FindByIDForUpdate(ctx, *p.subscriptionID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription to extend not found")
		}
		if existing.PayerID != p.payerID || existing.FacilityID != p.facilityID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription belongs to another payer or facility")
		}
		subID = existing.ID
	}

	payment := &models.Payment{
		ID:              uuid.New(),
		BillingDomain:   domain,
		InvoiceNumber:   invoice.Number,
		InvoiceSequence: invoice.Sequence,
		PayerType:       p.payerType,
		PayerID:         p.payerID,
		FacilityID:      p.facilityID,
		PlanID:          p.planID,
		PlanType:        p.planType,
		PeriodLabel:     p.periodLabel,
		Amount:          p.amount,
		Method:          p.method,
		Reference:       p.reference,
		Status:          p.method.InitialStatus(),
		SubscriptionID:  subID,
		SubscriptionRef: SubscriptionRef(p.payerID, subID),
		RecordedBy:      p.actor.StaffID,
		PaidOn:          subscriptions.Today(now, s.loc),
	}
	if err := s.payments.WithTx(tx).Create(ctx, payment); err != nil {
		return nil, err
	}

	event := enums.EventSubscriptionCreated
	var sub *models.Subscription
	if existing != nil {
		event = enums.EventSubscriptionExtended
		sub = existing
		extendedAt := now.UTC()
		sub.StartDate = p.start
		sub.EndDate = end
		sub.Status = enums.SubscriptionStatusActive
		sub.PayerType = p.payerType
		sub.PlanID = p.planID
		sub.PlanType = p.planType
		sub.LastPaymentID = &payment.ID
		sub.ExtendedBy = &p.actor.StaffID
		sub.ExtendedAt = &extendedAt
		sub.ExtensionCount++
		if err := subRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
	} else {
		sub = &models.Subscription{
			ID:            subID,
			PayerType:     p.payerType,
			PayerID:       p.payerID,
			FacilityID:    p.facilityID,
			PlanID:        p.planID,
			PlanType:      p.planType,
			StartDate:     p.start,
			EndDate:       end,
			Status:        enums.SubscriptionStatusActive,
			LastPaymentID: &payment.ID,
			CreatedBy:     p.actor.StaffID,
		}
		if err := subRepo.Create(ctx, sub); err != nil {
			return nil, err
		}
	}

	if err := s.emit(ctx, tx, p, payment, sub, event); err != nil {
		return nil, err
	}

	return &Receipt{
		PaymentID:       payment.ID,
		InvoiceNumber:   payment.InvoiceNumber,
		BillingDomain:   domain,
		PayerType:       p.payerType,
		PayerID:         p.payerID,
		FacilityID:      p.facilityID,
		SubscriptionID:  sub.ID,
		SubscriptionRef: payment.SubscriptionRef,
		PlanType:        p.planType,
		StartDate:       sub.StartDate.Format(subscriptions.DateLayout),
		EndDate:         sub.EndDate.Format(subscriptions.DateLayout),
		Amount:          payment.Amount,
		Method:          payment.Method,
		Reference:       payment.Reference,
		Status:          payment.Status,
		Extended:        existing != nil,
		PaidOn:          payment.PaidOn.Format(subscriptions.DateLayout),
		RecordedAt:      now.UTC(),
	}, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, p *plan, payment *models.Payment, sub *models.Subscription, subEvent enums.OutboxEventType) error {
	actor := p.actor.OutboxRef()
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor,
		Data: payloads.PaymentRecordedEvent{
			PaymentID:      payment.ID,
			InvoiceNumber:  payment.InvoiceNumber,
			BillingDomain:  payment.BillingDomain,
			PayerType:      payment.PayerType,
			PayerID:        payment.PayerID,
			FacilityID:     payment.FacilityID,
			SubscriptionID: payment.SubscriptionID,
			Amount:         payment.Amount,
			Method:         payment.Method,
			Status:         payment.Status,
			PaidOn:         payment.PaidOn.Format(subscriptions.DateLayout),
		},
	}, outbox.DomainEvent{
		EventType:     subEvent,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Actor:         actor,
		Data: payloads.SubscriptionChangedEvent{
			SubscriptionID: sub.ID,
			PayerType:      sub.PayerType,
			PayerID:        sub.PayerID,
			FacilityID:     sub.FacilityID,
			PlanType:       sub.PlanType,
			StartDate:      sub.StartDate.Format(subscriptions.DateLayout),
			EndDate:        sub.EndDate.Format(subscriptions.DateLayout),
			PaymentID:      payment.ID,
		},
	})
}

func (s *service) retryOptions(ctx context.Context) db.RetryOptions {
	opts := s.retry
	caller := opts.OnRetry
	opts.OnRetry = func(attempt int, err error) {
		s.metrics.IncRetry()
		logCtx := s.logg.WithFields(ctx, map[string]any{"attempt": attempt, "error": err.Error()})
		s.logg.Warn(logCtx, "booking transaction conflict, retrying")
		if caller != nil {
			caller(attempt, err)
		}
	}
	return opts
}

func (s *service) fail(ctx context.Context, started time.Time, err error) error {
	if errors.Is(err, db.ErrRetriesExhausted) {
		s.metrics.ObserveAttempt(metrics.OutcomeConflict, time.Since(started))
		s.logg.Error(ctx, "booking gave up after repeated conflicts", err)
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "booking could not be completed because of concurrent bookings; nothing was saved, please retry")
	}
	var coded *pkgerrors.Error
	if errors.As(err, &coded) {
		s.metrics.ObserveAttempt(metrics.OutcomeRejected, time.Since(started))
		return err
	}
	s.metrics.ObserveAttempt(metrics.OutcomeFailed, time.Since(started))
	s.logg.Error(ctx, "booking transaction failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "booking could not be saved")
}

func (s *service) succeed(ctx context.Context, started time.Time, receipt *Receipt) {
	s.metrics.ObserveAttempt(metrics.OutcomeCommitted, time.Since(started))
	s.metrics.IncInvoice(string(receipt.BillingDomain))
	logCtx := s.logg.WithInvoiceNumber(ctx, receipt.InvoiceNumber)
	logCtx = s.logg.WithPayerID(logCtx, receipt.PayerID.String())
	s.logg.Info(logCtx, "booking recorded")
}

func (s *service) manualReference() string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", s.manualPrefix, strings.ToUpper(token[:10]))
}

// SubscriptionRef is the back-pointer stored on a payment.
func SubscriptionRef(payerID, subscriptionID uuid.UUID) string {
	return payerID.String() + "/" + subscriptionID.String()
}

func periodLabel(p *plan) string {
	end := subscriptions.EndDate(p.start, p.planType, p.explicitMonths)
	return fmt.Sprintf("%s to %s", p.start.Format(subscriptions.DateLayout), end.Format(subscriptions.DateLayout))
}
