package controllers

import (
	"net/http"

	"github.com/sportsarena/membership-backend/api/controllers/dto"
	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/api/validators"
	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

// SubscriptionList returns a payer's subscription history, newest first.
func SubscriptionList(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payerID, err := validators.RequireQueryUUID(r, "payer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListByPayer(r.Context(), payerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapSlice(rows, dto.SubscriptionFromModel))
	}
}

// SubscriptionCurrent returns the latest subscription for a payer at a facility.
func SubscriptionCurrent(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payerID, err := validators.RequireQueryUUID(r, "payer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		facilityID, err := validators.RequireQueryUUID(r, "facility_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Current(r.Context(), payerID, facilityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.SubscriptionFromModel(*sub))
	}
}

func SubscriptionGet(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.SubscriptionFromModel(*sub))
	}
}

// SubscriptionNextStart proposes the start date for extending a subscription:
// the day after it ends.
func SubscriptionNextStart(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := svc.ProposeNextStart(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"subscription_id": id.String(),
			"start_date":      next.Format(validators.DateLayout),
		})
	}
}
