package bookings

import (
	"net/http"

	"github.com/sportsarena/membership-backend/api/controllers/dto"
	"github.com/sportsarena/membership-backend/api/middleware"
	"github.com/sportsarena/membership-backend/api/responses"
	"github.com/sportsarena/membership-backend/api/validators"
	"github.com/sportsarena/membership-backend/internal/booking"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

type registrationResponse struct {
	Member  dto.Member       `json:"member"`
	Receipt *booking.Receipt `json:"receipt"`
}

// Create records a payment for an existing payer and creates or extends the
// subscription it funds.
func Create(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		var payload dto.BookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := payload.ToRequest()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.Actor = middleware.ActorFromContext(r.Context())

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPayerID(ctx, req.PayerID.String())
		}

		receipt, err := svc.Book(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithInvoiceNumber(ctx, receipt.InvoiceNumber), "booking.recorded")
		}
		responses.WriteCreated(w, receipt)
	}
}

// Register creates a member or guest together with their first booking.
func Register(svc booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		var payload dto.RegistrationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reg, err := payload.ToRegistration()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reg.Booking.Actor = middleware.ActorFromContext(r.Context())

		member, receipt, err := svc.RegisterAndBook(r.Context(), reg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithPayerID(r.Context(), member.ID.String())
			logg.Info(logg.WithInvoiceNumber(ctx, receipt.InvoiceNumber), "booking.registered")
		}
		responses.WriteCreated(w, registrationResponse{
			Member:  dto.MemberFromModel(*member),
			Receipt: receipt,
		})
	}
}
