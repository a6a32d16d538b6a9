package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/sportsarena/membership-backend/pkg/db/models"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

// DomainEvent is what services hand to the emitter; it becomes one outbox row.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Emitter queues events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit writes events so they commit or roll back with the business rows.
// Either every event is queued or none is. The row id doubles as the
// envelope's eventId, which is what subscribers dedupe on.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, events ...DomainEvent) error {
	if tx == nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, errTxRequired, "emit outbox event")
	}
	rows := make([]models.OutboxEvent, 0, len(events))
	for _, event := range events {
		row, err := s.toRow(event)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := s.repo.Insert(ctx, tx, rows...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue outbox events")
	}
	if s.logg != nil {
		for _, row := range rows {
			s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
				"event_id":       row.ID.String(),
				"event_type":     row.EventType,
				"aggregate_type": row.AggregateType,
				"aggregate_id":   row.AggregateID.String(),
			}), "outbox event queued")
		}
	}
	return nil
}

func (s *Service) toRow(event DomainEvent) (models.OutboxEvent, error) {
	if !event.EventType.IsValid() {
		return models.OutboxEvent{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown outbox event type %q", event.EventType))
	}
	if !event.AggregateType.IsValid() {
		return models.OutboxEvent{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown outbox aggregate type %q", event.AggregateType))
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode outbox event data")
	}

	id := uuid.New()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    lo.Ternary(event.Version > 0, event.Version, EnvelopeVersion),
		EventID:    id.String(),
		OccurredAt: lo.Ternary(event.OccurredAt.IsZero(), s.now(), event.OccurredAt).UTC(),
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode outbox envelope")
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, nil
}
