package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportsarena/membership-backend/api/controllers/dto"
	"github.com/sportsarena/membership-backend/api/middleware"
	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/api/validators"
	"github.com/sportsarena/membership-backend/internal/academies"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

type academyRequest struct {
	Name        string          `json:"name" validate:"required,max=128"`
	ContactName string          `json:"contact_name" validate:"required,max=128"`
	Phone       string          `json:"phone" validate:"required,max=32"`
	Email       string          `json:"email" validate:"omitempty,email"`
	FacilityID  string          `json:"facility_id" validate:"required,uuid"`
	MonthlyFee  decimal.Decimal `json:"monthly_fee"`
	Active      *bool           `json:"active"`
}

func (r academyRequest) toInput() academies.Input {
	return academies.Input{
		Name:        r.Name,
		ContactName: r.ContactName,
		Phone:       r.Phone,
		Email:       r.Email,
		FacilityID:  uuid.MustParse(r.FacilityID),
		MonthlyFee:  r.MonthlyFee,
		Active:      r.Active,
	}
}

func AcademyCreate(svc academies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload academyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		academy, err := svc.Create(r.Context(), middleware.ActorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto.AcademyFromModel(*academy))
	}
}

// AcademyList optionally narrows to one facility with ?facility_id=.
func AcademyList(svc academies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := validators.ParseQueryUUID(r, "facility_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.List(r.Context(), facilityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapSlice(rows, dto.AcademyFromModel))
	}
}

func AcademyGet(svc academies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "academyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		academy, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.AcademyFromModel(*academy))
	}
}

func AcademyUpdate(svc academies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "academyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload academyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		academy, err := svc.Update(r.Context(), middleware.ActorFromContext(r.Context()), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.AcademyFromModel(*academy))
	}
}

func AcademyDelete(svc academies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "academyId")
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
