package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeDuplicate
	outcomeRetry
	outcomeDead
)

type batchStats struct {
	fetched    int
	published  int
	duplicates int
	retrying   int
	dead       int
}

func (b *batchStats) record(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeDuplicate:
		b.duplicates++
	case outcomeRetry:
		b.retrying++
	case outcomeDead:
		b.dead++
	}
}

func (b batchStats) fields() map[string]any {
	return map[string]any{
		"fetched":    b.fetched,
		"published":  b.published,
		"duplicates": b.duplicates,
		"retrying":   b.retrying,
		"dead":       b.dead,
	}
}

// processBatch locks one batch of pending rows and settles each of them inside
// the same transaction.
func (s *Service) processBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = batchStats{}
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		stats.fetched = len(events)
		for _, event := range events {
			o, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			stats.record(o)
		}
		return nil
	})
	return stats, err
}

// dispatch publishes one event and records the result on its row. The
// returned error is only for bookkeeping failures, which abort the batch.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDead, s.deadLetter(ctx, tx, event, "", enums.OutboxDLQReasonNonRetryable, err)
	}
	topic := resolved.Descriptor.Topic
	ctx = s.logg.WithFields(ctx, eventFields(event, resolved))

	if s.alreadyPublished(ctx, topic, event.ID) {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomeDuplicate, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		return outcomeDuplicate, nil
	}

	messageID, pubErr := s.publish(ctx, topic, event, resolved)
	if pubErr == nil {
		s.record(ctx, topic, event.ID, messageID)
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(ctx, "outbox event published")
		return outcomePublished, nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(pubErr, &nonRetry) {
		return outcomeDead, s.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return outcomeDead, s.deadLetter(ctx, tx, event, topic, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"error":         pubErr.Error(),
	}), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

// alreadyPublished consults the guard. Guard failures fall through to a normal
// publish; subscribers dedupe on event_id anyway.
func (s *Service) alreadyPublished(ctx context.Context, topic string, eventID uuid.UUID) bool {
	if s.guard == nil {
		return false
	}
	receipt, err := s.guard.Published(ctx, topic, eventID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox guard unavailable")
		return false
	}
	if receipt == nil {
		return false
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"message_id":   receipt.MessageID,
		"published_at": receipt.PublishedAt.Format(time.RFC3339),
	}), "outbox event already published")
	return true
}

// record notes the acknowledged publish. Only broker acks are recorded, so a
// crash before the ack leaves the row to be sent again.
func (s *Service) record(ctx context.Context, topic string, eventID uuid.UUID, messageID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Record(ctx, topic, eventID, messageID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox guard record failed")
	}
}

// deadLetter copies the event into the DLQ and retires its outbox row.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, topic string, reason enums.OutboxDLQErrorReason, cause error) error {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"error_reason":  reason,
		"attempt_count": event.AttemptCount,
		"error":         cause.Error(),
	}
	if topic != "" {
		fields["topic"] = topic
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, topic string, event models.OutboxEvent, resolved *registry.ResolvedEvent) (string, error) {
	pub := s.publishers(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("%w for topic %s", errNoPublisher, topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved),
	})
	if result == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	return result.Get(publishCtx)
}

func messageAttributes(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	return map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"topic":          resolved.Descriptor.Topic,
	}
	if id := resolved.Envelope.EventID; id != "" {
		fields["event_id"] = id
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
