package controllers

import (
	"net/http"
	"strings"

	"github.com/sportsarena/membership-backend/api/controllers/dto"
	"github.com/sportsarena/membership-backend/api/middleware"
	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/api/validators"
	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

func MemberCreate(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload dto.MemberRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		member, err := svc.Create(r.Context(), middleware.ActorFromContext(r.Context()), payload.ToInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto.MemberFromModel(*member))
	}
}

func MemberGet(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		member, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MemberFromModel(*member))
	}
}

// MemberUpdate replaces the profile; the body has the same shape as create.
func MemberUpdate(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload dto.MemberRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		member, err := svc.Update(r.Context(), id, payload.ToInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MemberFromModel(*member))
	}
}

// MemberList supports ?kind=member|guest, ?q= (name or phone) and cursor paging.
func MemberList(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := members.ListFilter{Search: strings.TrimSpace(r.URL.Query().Get("q"))}
		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			kind, err := enums.ParseMemberKind(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
				return
			}
			filter.Kind = &kind
		}
		var err error
		if filter.Cursor, err = validators.ParseQueryCursor(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapPage(page, dto.MemberFromModel))
	}
}

// MemberDelete removes the member with their subscriptions and payments.
func MemberDelete(svc members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Delete(r.Context(), middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.PayerDeleted(summary))
	}
}
