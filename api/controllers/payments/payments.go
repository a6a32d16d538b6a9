package payments

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sportsarena/membership-backend/api/controllers/dto"
	"github.com/sportsarena/membership-backend/api/middleware"
	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/api/validators"
	"github.com/sportsarena/membership-backend/internal/payments"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/pagination"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed failed"`
}

type editRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Method      *string          `json:"method"`
	PeriodLabel *string          `json:"period_label" validate:"omitempty,max=128"`
}

func (r editRequest) toInput() (payments.EditInput, error) {
	input := payments.EditInput{Amount: r.Amount, PeriodLabel: r.PeriodLabel}
	if r.Method != nil {
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(*r.Method))
		if err != nil {
			return payments.EditInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method")
		}
		input.Method = &method
	}
	return input, nil
}

// List returns payments newest first, narrowed by the query filters.
func List(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.MapPage(page, dto.PaymentFromModel))
	}
}

func parseFilter(r *http.Request) (payments.Filter, error) {
	var (
		filter payments.Filter
		err    error
	)
	if filter.PayerID, err = validators.ParseQueryUUID(r, "payer_id"); err != nil {
		return filter, err
	}
	if filter.FacilityID, err = validators.ParseQueryUUID(r, "facility_id"); err != nil {
		return filter, err
	}
	if filter.PaidFrom, err = validators.ParseQueryDate(r, "from"); err != nil {
		return filter, err
	}
	if filter.PaidTo, err = validators.ParseQueryDate(r, "to"); err != nil {
		return filter, err
	}
	if filter.Cursor, err = validators.ParseQueryCursor(r); err != nil {
		return filter, err
	}
	if filter.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
		return filter, err
	}

	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("domain")); raw != "" {
		domain, err := enums.ParseBillingDomain(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid domain")
		}
		filter.BillingDomain = &domain
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("method")); raw != "" {
		method, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method")
		}
		filter.Method = &method
	}
	return filter, nil
}

func Get(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.PaymentFromModel(*payment))
	}
}

// GetByInvoice resolves a printed invoice number. ?domain=academy selects the
// academy counter.
func GetByInvoice(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domain := enums.BillingDomain(strings.TrimSpace(r.URL.Query().Get("domain")))
		payment, err := svc.GetByInvoice(r.Context(), domain, chi.URLParam(r, "number"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.PaymentFromModel(*payment))
	}
}

// UpdateStatus settles a pending online payment.
func UpdateStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.UpdateStatus(r.Context(), middleware.ActorFromContext(r.Context()), id, enums.PaymentStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.PaymentFromModel(*updated))
	}
}

func Edit(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload editRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Edit(r.Context(), middleware.ActorFromContext(r.Context()), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.PaymentFromModel(*updated))
	}
}

// Export streams the reconciliation CSV for ?from=&to= (inclusive dates).
func Export(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if from == nil || to == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from and to are required"))
			return
		}
		var domain *enums.BillingDomain
		if raw := strings.TrimSpace(r.URL.Query().Get("domain")); raw != "" {
			d := enums.BillingDomain(raw)
			domain = &d
		}

		// buffered so a failure still produces a JSON error
		var buf bytes.Buffer
		count, err := svc.Export(r.Context(), &buf, *from, *to, domain)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filename := fmt.Sprintf("payments_%s_%s.csv", from.Format(validators.DateLayout), to.Format(validators.DateLayout))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("X-Row-Count", fmt.Sprint(count))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
