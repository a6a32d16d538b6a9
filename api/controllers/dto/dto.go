// Package dto maps persisted rows onto the JSON shapes the dashboard reads.
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/outbox/payloads"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// MapPage converts a repository page, keeping its cursor.
func MapPage[M, T any](page pagination.Page[M], fn func(M) T) Page[T] {
	return Page[T]{
		Items:      lo.Map(page.Items, func(item M, _ int) T { return fn(item) }),
		NextCursor: page.NextCursor,
	}
}

// MapSlice converts a plain list.
func MapSlice[M, T any](items []M, fn func(M) T) []T {
	return lo.Map(items, func(item M, _ int) T { return fn(item) })
}

type Member struct {
	ID                    uuid.UUID        `json:"id"`
	Kind                  enums.MemberKind `json:"kind"`
	FullName              string           `json:"full_name"`
	Phone                 string           `json:"phone"`
	Email                 string           `json:"email,omitempty"`
	Gender                string           `json:"gender,omitempty"`
	DateOfBirth           string           `json:"date_of_birth,omitempty"`
	Address               string           `json:"address,omitempty"`
	EmergencyContactName  string           `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string           `json:"emergency_contact_phone,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	CreatedBy             string           `json:"created_by"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func MemberFromModel(m models.Member) Member {
	return Member{
		ID:                    m.ID,
		Kind:                  m.Kind,
		FullName:              m.FullName,
		Phone:                 m.Phone,
		Email:                 lo.FromPtr(m.Email),
		Gender:                lo.FromPtr(m.Gender),
		DateOfBirth:           formatDatePtr(m.DateOfBirth),
		Address:               lo.FromPtr(m.Address),
		EmergencyContactName:  lo.FromPtr(m.EmergencyContactName),
		EmergencyContactPhone: lo.FromPtr(m.EmergencyContactPhone),
		Notes:                 lo.FromPtr(m.Notes),
		CreatedBy:             m.CreatedBy,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

type Facility struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func FacilityFromModel(f models.Facility) Facility {
	return Facility{
		ID:          f.ID,
		Name:        f.Name,
		Description: lo.FromPtr(f.Description),
		Active:      f.Active,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

type Plan struct {
	ID             uuid.UUID       `json:"id"`
	FacilityID     uuid.UUID       `json:"facility_id"`
	PlanType       enums.PlanType  `json:"plan_type"`
	Name           string          `json:"name"`
	Fee            decimal.Decimal `json:"fee"`
	DurationMonths int             `json:"duration_months"`
	Active         bool            `json:"active"`
}

// PlanFromModel reports the effective duration, explicit or inferred.
func PlanFromModel(p models.FacilityPlan) Plan {
	return Plan{
		ID:             p.ID,
		FacilityID:     p.FacilityID,
		PlanType:       p.PlanType,
		Name:           p.Name,
		Fee:            p.Fee,
		DurationMonths: lo.FromPtrOr(p.DurationMonths, p.PlanType.Months()),
		Active:         p.Active,
	}
}

type Academy struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	ContactName string          `json:"contact_name"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email,omitempty"`
	FacilityID  uuid.UUID       `json:"facility_id"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	Active      bool            `json:"active"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

func AcademyFromModel(a models.Academy) Academy {
	return Academy{
		ID:          a.ID,
		Name:        a.Name,
		ContactName: a.ContactName,
		Phone:       a.Phone,
		Email:       lo.FromPtr(a.Email),
		FacilityID:  a.FacilityID,
		MonthlyFee:  a.MonthlyFee,
		Active:      a.Active,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt,
	}
}

type Payment struct {
	ID              uuid.UUID           `json:"id"`
	InvoiceNumber   string              `json:"invoice_number"`
	BillingDomain   enums.BillingDomain `json:"billing_domain"`
	PayerType       enums.PayerType     `json:"payer_type"`
	PayerID         uuid.UUID           `json:"payer_id"`
	FacilityID      uuid.UUID           `json:"facility_id"`
	PlanID          *uuid.UUID          `json:"plan_id,omitempty"`
	PlanType        enums.PlanType      `json:"plan_type"`
	PeriodLabel     string              `json:"period_label"`
	Amount          decimal.Decimal     `json:"amount"`
	Method          enums.PaymentMethod `json:"method"`
	Reference       string              `json:"reference"`
	Status          enums.PaymentStatus `json:"status"`
	SubscriptionID  uuid.UUID           `json:"subscription_id"`
	SubscriptionRef string              `json:"subscription_ref"`
	PaidOn          string              `json:"paid_on"`
	RecordedBy      string              `json:"recorded_by"`
	StatusChangedBy *string             `json:"status_changed_by,omitempty"`
	StatusChangedAt *time.Time          `json:"status_changed_at,omitempty"`
	EditedBy        *string             `json:"edited_by,omitempty"`
	EditedAt        *time.Time          `json:"edited_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func PaymentFromModel(p models.Payment) Payment {
	return Payment{
		ID:              p.ID,
		InvoiceNumber:   p.InvoiceNumber,
		BillingDomain:   p.BillingDomain,
		PayerType:       p.PayerType,
		PayerID:         p.PayerID,
		FacilityID:      p.FacilityID,
		PlanID:          p.PlanID,
		PlanType:        p.PlanType,
		PeriodLabel:     p.PeriodLabel,
		Amount:          p.Amount,
		Method:          p.Method,
		Reference:       p.Reference,
		Status:          p.Status,
		SubscriptionID:  p.SubscriptionID,
		SubscriptionRef: p.SubscriptionRef,
		PaidOn:          p.PaidOn.Format(dateLayout),
		RecordedBy:      p.RecordedBy,
		StatusChangedBy: p.StatusChangedBy,
		StatusChangedAt: p.StatusChangedAt,
		EditedBy:        p.EditedBy,
		EditedAt:        p.EditedAt,
		CreatedAt:       p.CreatedAt,
	}
}

type Subscription struct {
	ID             uuid.UUID                `json:"id"`
	PayerType      enums.PayerType          `json:"payer_type"`
	PayerID        uuid.UUID                `json:"payer_id"`
	FacilityID     uuid.UUID                `json:"facility_id"`
	PlanID         *uuid.UUID               `json:"plan_id,omitempty"`
	PlanType       enums.PlanType           `json:"plan_type"`
	StartDate      string                   `json:"start_date"`
	EndDate        string                   `json:"end_date"`
	Status         enums.SubscriptionStatus `json:"status"`
	LastPaymentID  *uuid.UUID               `json:"last_payment_id,omitempty"`
	CreatedBy      string                   `json:"created_by"`
	ExtendedBy     *string                  `json:"extended_by,omitempty"`
	ExtendedAt     *time.Time               `json:"extended_at,omitempty"`
	ExtensionCount int                      `json:"extension_count"`
	CreatedAt      time.Time                `json:"created_at"`
}

func SubscriptionFromModel(s models.Subscription) Subscription {
	return Subscription{
		ID:             s.ID,
		PayerType:      s.PayerType,
		PayerID:        s.PayerID,
		FacilityID:     s.FacilityID,
		PlanID:         s.PlanID,
		PlanType:       s.PlanType,
		StartDate:      s.StartDate.Format(dateLayout),
		EndDate:        s.EndDate.Format(dateLayout),
		Status:         s.Status,
		LastPaymentID:  s.LastPaymentID,
		CreatedBy:      s.CreatedBy,
		ExtendedBy:     s.ExtendedBy,
		ExtendedAt:     s.ExtendedAt,
		ExtensionCount: s.ExtensionCount,
		CreatedAt:      s.CreatedAt,
	}
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// DeleteSummary reports what a cascade delete removed.
type DeleteSummary struct {
	ID                   uuid.UUID `json:"id"`
	DeletedPlans         int64     `json:"deleted_plans,omitempty"`
	DeletedSubscriptions int64     `json:"deleted_subscriptions"`
	DeletedPayments      int64     `json:"deleted_payments"`
}

func PayerDeleted(e *payloads.PayerDeletedEvent) DeleteSummary {
	return DeleteSummary{
		ID:                   e.PayerID,
		DeletedSubscriptions: e.DeletedSubscriptions,
		DeletedPayments:      e.DeletedPayments,
	}
}

func FacilityDeleted(e *payloads.FacilityDeletedEvent) DeleteSummary {
	return DeleteSummary{
		ID:                   e.FacilityID,
		DeletedPlans:         e.DeletedPlans,
		DeletedSubscriptions: e.DeletedSubscriptions,
		DeletedPayments:      e.DeletedPayments,
	}
}

type DeadLetter struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Error         string                     `json:"error,omitempty"`
	Attempts      int                        `json:"attempts"`
	FailedAt      time.Time                  `json:"failed_at"`
}

func DeadLetterFromModel(d models.OutboxDLQ) DeadLetter {
	return DeadLetter{
		EventID:       d.EventID,
		EventType:     d.EventType,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		Reason:        d.ErrorReason,
		Error:         lo.FromPtr(d.ErrorMessage),
		Attempts:      d.AttemptCount,
		FailedAt:      d.FailedAt,
	}
}
