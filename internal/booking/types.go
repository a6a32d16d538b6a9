package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/pkg/auth"
	"github.com/sportsarena/membership-backend/pkg/enums"
)

// Request is one payment that funds a new or extended subscription.
type Request struct {
	PayerType  enums.PayerType
	PayerID    uuid.UUID
	FacilityID uuid.UUID

	// PlanID selects a priced facility plan. Without it PlanType and
	// DurationMonths describe the period directly.
	PlanID         *uuid.UUID
	PlanType       enums.PlanType
	DurationMonths *int

	// Amount overrides the plan or academy fee when set.
	Amount      *decimal.Decimal
	Method      enums.PaymentMethod
	Reference   string
	StartDate   string
	PeriodLabel string

	// SubscriptionID extends that subscription instead of creating one.
	SubscriptionID *uuid.UUID

	Actor auth.Actor
}

// Registration creates a member or guest and books their first subscription
// in the same transaction. Booking.PayerID and Booking.PayerType are ignored.
type Registration struct {
	Member  members.Input
	Booking Request
}

// Receipt is what the caller needs to render or print the booking.
type Receipt struct {
	PaymentID       uuid.UUID           `json:"payment_id"`
	InvoiceNumber   string              `json:"invoice_number"`
	BillingDomain   enums.BillingDomain `json:"billing_domain"`
	PayerType       enums.PayerType     `json:"payer_type"`
	PayerID         uuid.UUID           `json:"payer_id"`
	FacilityID      uuid.UUID           `json:"facility_id"`
	SubscriptionID  uuid.UUID           `json:"subscription_id"`
	SubscriptionRef string              `json:"subscription_ref"`
	PlanType        enums.PlanType      `json:"plan_type"`
	StartDate       string              `json:"start_date"`
	EndDate         string              `json:"end_date"`
	Amount          decimal.Decimal     `json:"amount"`
	Method          enums.PaymentMethod `json:"method"`
	Reference       string              `json:"reference"`
	Status          enums.PaymentStatus `json:"status"`
	Extended        bool                `json:"extended"`
	PaidOn          string              `json:"paid_on"`
	RecordedAt      time.Time           `json:"recorded_at"`
}

// plan is a fully resolved booking, ready to be written.
type plan struct {
	payerType      enums.PayerType
	payerID        uuid.UUID
	facilityID     uuid.UUID
	planID         *uuid.UUID
	planType       enums.PlanType
	explicitMonths *int
	amount         decimal.Decimal
	method         enums.PaymentMethod
	reference      string
	start          time.Time
	periodLabel    string
	subscriptionID *uuid.UUID
	actor          auth.Actor
}
