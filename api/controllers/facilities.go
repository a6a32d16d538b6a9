package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sportsarena/membership-backend/api/controllers/dto"
	"github.com/sportsarena/membership-backend/api/middleware"
	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/api/validators"
	"github.com/sportsarena/membership-backend/internal/facilities"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

type facilityRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	Active      *bool  `json:"active"`
}

func (r facilityRequest) toInput() facilities.FacilityInput {
	return facilities.FacilityInput{Name: r.Name, Description: r.Description, Active: r.Active}
}

type planRequest struct {
	PlanType       string          `json:"plan_type" validate:"required,max=32"`
	Name           string          `json:"name" validate:"required,max=128"`
	Fee            decimal.Decimal `json:"fee"`
	DurationMonths *int            `json:"duration_months" validate:"omitempty,min=1,max=120"`
	Active         *bool           `json:"active"`
}

func (r planRequest) toInput() facilities.PlanInput {
	return facilities.PlanInput{
		PlanType:       enums.PlanType(strings.TrimSpace(r.PlanType)),
		Name:           r.Name,
		Fee:            r.Fee,
		DurationMonths: r.DurationMonths,
		Active:         r.Active,
	}
}

func FacilityCreate(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload facilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		facility, err := svc.CreateFacility(r.Context(), middleware.ActorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto.FacilityFromModel(*facility))
	}
}

// FacilityList returns every facility, or only active ones with ?active=true.
func FacilityList(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListFacilities(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapSlice(rows, dto.FacilityFromModel))
	}
}

func FacilityGet(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "facilityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		facility, err := svc.GetFacility(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FacilityFromModel(*facility))
	}
}

func FacilityUpdate(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "facilityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload facilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		facility, err := svc.UpdateFacility(r.Context(), middleware.ActorFromContext(r.Context()), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FacilityFromModel(*facility))
	}
}

func FacilityDelete(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "facilityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.DeleteFacility(r.Context(), middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.FacilityDeleted(summary))
	}
}

func PlanCreate(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := validators.ParseUUIDParam(r, "facilityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload planRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.CreatePlan(r.Context(), middleware.ActorFromContext(r.Context()), facilityID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, dto.PlanFromModel(*plan))
	}
}

func PlanList(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := validators.ParseUUIDParam(r, "facilityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plans, err := svc.ListPlans(r.Context(), facilityID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapSlice(plans, dto.PlanFromModel))
	}
}

func PlanUpdate(svc facilities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		facilityID, err := validators.ParseUUIDParam(r, "facilityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		planID, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload planRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		plan, err := svc.UpdatePlan(r.Context(), middleware.ActorFromContext(r.Context()), facilityID, planID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.PlanFromModel(*plan))
	}
}
