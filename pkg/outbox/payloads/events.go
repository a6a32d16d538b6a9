package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// PaymentRecordedEvent is emitted once per committed booking.
type PaymentRecordedEvent struct {
	PaymentID      uuid.UUID           `json:"paymentId"`
	InvoiceNumber  string              `json:"invoiceNumber"`
	BillingDomain  enums.BillingDomain `json:"billingDomain"`
	PayerType      enums.PayerType     `json:"payerType"`
	PayerID        uuid.UUID           `json:"payerId"`
	FacilityID     uuid.UUID           `json:"facilityId"`
	SubscriptionID uuid.UUID           `json:"subscriptionId"`
	Amount         decimal.Decimal     `json:"amount"`
	Method         enums.PaymentMethod `json:"method"`
	Status         enums.PaymentStatus `json:"status"`
	PaidOn         string              `json:"paidOn"`
}

// PaymentStatusChangedEvent reports a pending payment settling.
type PaymentStatusChangedEvent struct {
	PaymentID     uuid.UUID           `json:"paymentId"`
	InvoiceNumber string              `json:"invoiceNumber"`
	From          enums.PaymentStatus `json:"from"`
	To            enums.PaymentStatus `json:"to"`
}

// PaymentEditedEvent carries the administrative fields after an edit.
type PaymentEditedEvent struct {
	PaymentID     uuid.UUID           `json:"paymentId"`
	InvoiceNumber string              `json:"invoiceNumber"`
	Amount        decimal.Decimal     `json:"amount"`
	Method        enums.PaymentMethod `json:"method"`
	PeriodLabel   string              `json:"periodLabel"`
}

// SubscriptionChangedEvent covers creation and extension of a window.
type SubscriptionChangedEvent struct {
	SubscriptionID uuid.UUID       `json:"subscriptionId"`
	PayerType      enums.PayerType `json:"payerType"`
	PayerID        uuid.UUID       `json:"payerId"`
	FacilityID     uuid.UUID       `json:"facilityId"`
	PlanType       enums.PlanType  `json:"planType"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	PaymentID      uuid.UUID       `json:"paymentId"`
}

// SubscriptionExpiredEvent is emitted by the expiry sweep.
type SubscriptionExpiredEvent struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	PayerID        uuid.UUID `json:"payerId"`
	FacilityID     uuid.UUID `json:"facilityId"`
	EndDate        string    `json:"endDate"`
}

// MemberRegisteredEvent is emitted when a member or guest is created.
type MemberRegisteredEvent struct {
	MemberID uuid.UUID        `json:"memberId"`
	Kind     enums.MemberKind `json:"kind"`
	FullName string           `json:"fullName"`
}

// PayerDeletedEvent summarizes an administrative cascade delete.
type PayerDeletedEvent struct {
	PayerType            enums.PayerType `json:"payerType"`
	PayerID              uuid.UUID       `json:"payerId"`
	DeletedSubscriptions int64           `json:"deletedSubscriptions"`
	DeletedPayments      int64           `json:"deletedPayments"`
}

// FacilityDeletedEvent summarizes a facility cascade delete.
type FacilityDeletedEvent struct {
	FacilityID           uuid.UUID `json:"facilityId"`
	DeletedPlans         int64     `json:"deletedPlans"`
	DeletedSubscriptions int64     `json:"deletedSubscriptions"`
	DeletedPayments      int64     `json:"deletedPayments"`
}
