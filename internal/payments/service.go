package payments

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/auth"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/outbox"
	"github.com/sportsarena/membership-backend/pkg/outbox/payloads"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

const (
	dateLayout = "2006-01-02"
	// maxExportDays bounds a single reconciliation export.
	maxExportDays = 366
)

// EditInput holds the administrative corrections allowed on a recorded
// payment. Nil fields are left unchanged.
type EditInput struct {
	Amount      *decimal.Decimal
	Method      *enums.PaymentMethod
	PeriodLabel *string
}

// ExportRow is one line of the reconciliation CSV.
type ExportRow struct {
	InvoiceNumber string `csv:"invoice_number"`
	BillingDomain string `csv:"billing_domain"`
	PaidOn        string `csv:"paid_on"`
	PayerType     string `csv:"payer_type"`
	PayerID       string `csv:"payer_id"`
	FacilityID    string `csv:"facility_id"`
	Amount        string `csv:"amount"`
	Method        string `csv:"method"`
	Reference     string `csv:"utr"`
	Status        string `csv:"status"`
	PeriodLabel   string `csv:"period"`
}

// Service reads and administers recorded payments. Payments are created by
// the booking flow only.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByInvoice(ctx context.Context, domain enums.BillingDomain, number string) (*models.Payment, error)
	List(ctx context.Context, filter Filter) (pagination.Page[models.Payment], error)
	UpdateStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, next enums.PaymentStatus) (*models.Payment, error)
	Edit(ctx context.Context, actor auth.Actor, id uuid.UUID, input EditInput) (*models.Payment, error)
	Export(ctx context.Context, w io.Writer, from, to time.Time, domain *enums.BillingDomain) (int, error)
}

type ServiceParams struct {
	DB     db.TxRunner
	Repo   Repository
	Outbox outbox.Emitter
	Now    func() time.Time
}

type service struct {
	db     db.TxRunner
	repo   Repository
	outbox outbox.Emitter
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("transaction runner is required")
	case params.Repo == nil:
		return nil, errors.New("payment repository is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{db: params.DB, repo: params.Repo, outbox: params.Outbox, now: now}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

// GetByInvoice looks a payment up by invoice number. Both domains may print
// the same prefix, so the domain picks the counter; it defaults to facility.
func (s *service) GetByInvoice(ctx context.Context, domain enums.BillingDomain, number string) (*models.Payment, error) {
	if domain == "" {
		domain = enums.BillingDomainFacility
	}
	if !domain.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown billing domain %q", domain)
	}
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number is required")
	}
	payment, err := s.repo.FindByInvoice(ctx, domain, number)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, filter Filter) (pagination.Page[models.Payment], error) {
	if filter.PaidFrom != nil && filter.PaidTo != nil && filter.PaidTo.Before(*filter.PaidFrom) {
		return pagination.Page[models.Payment]{}, pkgerrors.New(pkgerrors.CodeValidation, "paid_to must not be before paid_from")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Page[models.Payment]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return pagination.Slice(rows, filter.Limit, func(p models.Payment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// UpdateStatus settles a pending payment once the online transfer has been
// verified or rejected.
func (s *service) UpdateStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, next enums.PaymentStatus) (*models.Payment, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment status %q", next)
	}

	var updated *models.Payment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		if !payment.Status.CanTransitionTo(next) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment cannot move from %s to %s", payment.Status, next)
		}

		from := payment.Status
		changedAt := s.now().UTC()
		payment.Status = next
		payment.StatusChangedBy = &actor.StaffID
		payment.StatusChangedAt = &changedAt
		if err := repo.Update(ctx, payment); err != nil {
			return err
		}
		updated = payment
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentStatusChanged,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor.OutboxRef(),
			Data: payloads.PaymentStatusChangedEvent{
				PaymentID:     payment.ID,
				InvoiceNumber: payment.InvoiceNumber,
				From:          from,
				To:            next,
			},
		})
	})
	if err != nil {
		return nil, wrapTxError(err, "update payment status")
	}
	return updated, nil
}

// Edit corrects the amount, method or period label. Invoice number, payer
// and subscription link never change.
func (s *service) Edit(ctx context.Context, actor auth.Actor, id uuid.UUID, input EditInput) (*models.Payment, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if input.Amount == nil && input.Method == nil && input.PeriodLabel == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to edit")
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if input.Method != nil && !input.Method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment method %q", *input.Method)
	}
	if input.PeriodLabel != nil && strings.TrimSpace(*input.PeriodLabel) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period label must not be empty")
	}

	var updated *models.Payment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}

		if input.Amount != nil {
			payment.Amount = input.Amount.Round(2)
		}
		if input.Method != nil {
			payment.Method = *input.Method
		}
		if input.PeriodLabel != nil {
			payment.PeriodLabel = strings.TrimSpace(*input.PeriodLabel)
		}
		editedAt := s.now().UTC()
		payment.EditedBy = &actor.StaffID
		payment.EditedAt = &editedAt
		if err := repo.Update(ctx, payment); err != nil {
			return err
		}
		updated = payment
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentEdited,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor.OutboxRef(),
			Data: payloads.PaymentEditedEvent{
				PaymentID:     payment.ID,
				InvoiceNumber: payment.InvoiceNumber,
				Amount:        payment.Amount,
				Method:        payment.Method,
				PeriodLabel:   payment.PeriodLabel,
			},
		})
	})
	if err != nil {
		return nil, wrapTxError(err, "edit payment")
	}
	return updated, nil
}

// Export writes the reconciliation CSV for payments paid between from and to
// inclusive and returns the number of rows written.
func (s *service) Export(ctx context.Context, w io.Writer, from, to time.Time, domain *enums.BillingDomain) (int, error) {
	if to.Before(from) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	if to.Sub(from) > maxExportDays*24*time.Hour {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "export range is limited to %d days", maxExportDays)
	}
	if domain != nil && !domain.IsValid() {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown billing domain %q", *domain)
	}

	rows, err := s.repo.ListForExport(ctx, from, to, domain)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments for export")
	}

	out := make([]*ExportRow, 0, len(rows))
	for _, p := range rows {
		out = append(out, &ExportRow{
			InvoiceNumber: p.InvoiceNumber,
			BillingDomain: string(p.BillingDomain),
			PaidOn:        p.PaidOn.Format(dateLayout),
			PayerType:     string(p.PayerType),
			PayerID:       p.PayerID.String(),
			FacilityID:    p.FacilityID.String(),
			Amount:        p.Amount.StringFixed(2),
			Method:        string(p.Method),
			Reference:     p.Reference,
			Status:        string(p.Status),
			PeriodLabel:   p.PeriodLabel,
		})
	}
	if err := gocsv.Marshal(out, w); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export")
	}
	return len(out), nil
}

func wrapTxError(err error, action string) error {
	if coded := pkgerrors.As(err); coded != nil {
		return coded
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
