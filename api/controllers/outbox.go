package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sportsarena/membership-backend/api/controllers/dto"
	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/api/validators"
	"github.com/sportsarena/membership-backend/pkg/db/models"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

// DeadLetters is the slice of the outbox DLQ the admin endpoints need.
type DeadLetters interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) (bool, error)
}

func DeadLetterList(store DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := store.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		responses.WriteSuccess(w, dto.MapSlice(rows, dto.DeadLetterFromModel))
	}
}

// DeadLetterRequeue gives a dead-lettered event a fresh attempt budget.
func DeadLetterRequeue(store DeadLetters, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := validators.ParseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithField(r.Context(), "event_id", eventID.String())
		found, err := store.Requeue(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue dead letter"))
			return
		}
		if !found {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"))
			return
		}
		logg.Info(ctx, "outbox.dead_letter.requeued")
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"event_id": eventID.String()})
	}
}
