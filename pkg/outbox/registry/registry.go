package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/outbox"
	"github.com/sportsarena/membership-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
// An empty AggregateType accepts any aggregate.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish no matter how often it is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err so the dispatcher dead-letters the row.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

var errBillingTopicRequired = errors.New("billing topic is required")

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// NewEventRegistry builds the registry. Payment and subscription events go to
// the billing topic, directory events to the directory topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	billing := cfg.BillingTopic
	if billing == "" {
		return nil, errBillingTopicRequired
	}
	directory := cfg.DirectoryTopicOrDefault()

	descs := []EventDescriptor{
		describe[payloads.PaymentRecordedEvent](enums.EventPaymentRecorded, enums.AggregatePayment, billing),
		describe[payloads.PaymentStatusChangedEvent](enums.EventPaymentStatusChanged, enums.AggregatePayment, billing),
		describe[payloads.PaymentEditedEvent](enums.EventPaymentEdited, enums.AggregatePayment, billing),
		describe[payloads.SubscriptionChangedEvent](enums.EventSubscriptionCreated, enums.AggregateSubscription, billing),
		describe[payloads.SubscriptionChangedEvent](enums.EventSubscriptionExtended, enums.AggregateSubscription, billing),
		describe[payloads.SubscriptionExpiredEvent](enums.EventSubscriptionExpired, enums.AggregateSubscription, billing),
		describe[payloads.MemberRegisteredEvent](enums.EventMemberRegistered, enums.AggregateMember, directory),
		// payer_deleted is raised for both member and academy aggregates.
		describe[payloads.PayerDeletedEvent](enums.EventPayerDeleted, "", directory),
		describe[payloads.FacilityDeletedEvent](enums.EventFacilityDeleted, enums.AggregateFacility, directory),
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descs))}
	for _, desc := range descs {
		if _, dup := reg.entries[desc.EventType]; dup {
			return nil, fmt.Errorf("event type %s registered twice", desc.EventType)
		}
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topic reports where an event type is published.
func (r *EventRegistry) Topic(eventType enums.OutboxEventType) (string, bool) {
	desc, ok := r.entries[eventType]
	return desc.Topic, ok
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != "" && desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := decodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func decodeEnvelope(raw json.RawMessage) (outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > outbox.EnvelopeVersion {
		return envelope, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return envelope, fmt.Errorf("invalid event id %q", envelope.EventID)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return envelope, errors.New("payload missing")
	}
	return envelope, nil
}
