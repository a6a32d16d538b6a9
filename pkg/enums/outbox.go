package enums

import "github.com/samber/lo"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregatePayment      OutboxAggregateType = "payment"
	AggregateSubscription OutboxAggregateType = "subscription"
	AggregateMember       OutboxAggregateType = "member"
	AggregateAcademy      OutboxAggregateType = "academy"
	AggregateFacility     OutboxAggregateType = "facility"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePayment,
	AggregateSubscription,
	AggregateMember,
	AggregateAcademy,
	AggregateFacility,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return lo.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", validAggregateTypes, value)
}

// OutboxEventType names what happened.
type OutboxEventType string

const (
	EventPaymentRecorded      OutboxEventType = "payment_recorded"
	EventPaymentStatusChanged OutboxEventType = "payment_status_changed"
	EventPaymentEdited        OutboxEventType = "payment_edited"
	EventSubscriptionCreated  OutboxEventType = "subscription_created"
	EventSubscriptionExtended OutboxEventType = "subscription_extended"
	EventSubscriptionExpired  OutboxEventType = "subscription_expired"
	EventMemberRegistered     OutboxEventType = "member_registered"
	EventPayerDeleted         OutboxEventType = "payer_deleted"
	EventFacilityDeleted      OutboxEventType = "facility_deleted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentRecorded,
	EventPaymentStatusChanged,
	EventPaymentEdited,
	EventSubscriptionCreated,
	EventSubscriptionExtended,
	EventSubscriptionExpired,
	EventMemberRegistered,
	EventPayerDeleted,
	EventFacilityDeleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return lo.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", validOutboxEventTypes, value)
}

// OutboxDLQErrorReason records why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)
