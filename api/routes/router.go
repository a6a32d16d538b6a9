package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sportsarena/membership-backend/api/controllers"
	bookingcontrollers "github.com/sportsarena/membership-backend/api/controllers/bookings"
	paymentcontrollers "github.com/sportsarena/membership-backend/api/controllers/payments"
	"github.com/sportsarena/membership-backend/api/middleware"
	"github.com/sportsarena/membership-backend/internal/academies"
	"github.com/sportsarena/membership-backend/internal/booking"
	"github.com/sportsarena/membership-backend/internal/facilities"
	"github.com/sportsarena/membership-backend/internal/members"
	"github.com/sportsarena/membership-backend/internal/payments"
	"github.com/sportsarena/membership-backend/internal/subscriptions"
	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/enums"
	"github.com/sportsarena/membership-backend/pkg/logger"
	"github.com/sportsarena/membership-backend/pkg/metrics"
	"github.com/sportsarena/membership-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs from cmd/api.
type Deps struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Bookings      booking.Service
	Members       members.Service
	Facilities    facilities.Service
	Academies     academies.Service
	Payments      payments.Service
	Subscriptions subscriptions.Service
	DeadLetters   controllers.DeadLetters
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTP),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": pingerOrNil(deps.Redis),
		}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	writes := middleware.NewRateLimitPolicy("writes", cfg.RateLimit.WriteWindow, cfg.RateLimit.WriteLimit)
	idempotent := middleware.Idempotency(idempotencyStore(deps.Redis), cfg.Eventing.IdempotencyTTL, logg)
	adminOnly := middleware.RequireRole(logg, enums.StaffRoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(writes, rateLimiterOrNil(deps.Redis), logg))

		r.Route("/bookings", func(r chi.Router) {
			r.With(idempotent).Post("/", bookingcontrollers.Create(deps.Bookings, logg))
			r.With(idempotent).Post("/register", bookingcontrollers.Register(deps.Bookings, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.SubscriptionList(deps.Subscriptions, logg))
			r.Get("/current", controllers.SubscriptionCurrent(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}", controllers.SubscriptionGet(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}/next-start", controllers.SubscriptionNextStart(deps.Subscriptions, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", paymentcontrollers.List(deps.Payments, logg))
			r.Get("/invoice/{number}", paymentcontrollers.GetByInvoice(deps.Payments, logg))
			r.With(adminOnly).Get("/export", paymentcontrollers.Export(deps.Payments, logg))
			r.Get("/{paymentId}", paymentcontrollers.Get(deps.Payments, logg))
			r.With(adminOnly).Patch("/{paymentId}", paymentcontrollers.Edit(deps.Payments, logg))
			r.With(adminOnly, idempotent).Post("/{paymentId}/status", paymentcontrollers.UpdateStatus(deps.Payments, logg))
		})

		r.Route("/members", func(r chi.Router) {
			r.Get("/", controllers.MemberList(deps.Members, logg))
			r.Post("/", controllers.MemberCreate(deps.Members, logg))
			r.Get("/{memberId}", controllers.MemberGet(deps.Members, logg))
			r.Put("/{memberId}", controllers.MemberUpdate(deps.Members, logg))
			r.With(adminOnly).Delete("/{memberId}", controllers.MemberDelete(deps.Members, logg))
		})

		r.Route("/facilities", func(r chi.Router) {
			r.Get("/", controllers.FacilityList(deps.Facilities, logg))
			r.Get("/{facilityId}", controllers.FacilityGet(deps.Facilities, logg))
			r.Get("/{facilityId}/plans", controllers.PlanList(deps.Facilities, logg))

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/", controllers.FacilityCreate(deps.Facilities, logg))
				r.Put("/{facilityId}", controllers.FacilityUpdate(deps.Facilities, logg))
				r.Delete("/{facilityId}", controllers.FacilityDelete(deps.Facilities, logg))
				r.Post("/{facilityId}/plans", controllers.PlanCreate(deps.Facilities, logg))
				r.Put("/{facilityId}/plans/{planId}", controllers.PlanUpdate(deps.Facilities, logg))
			})
		})

		r.Route("/academies", func(r chi.Router) {
			r.Get("/", controllers.AcademyList(deps.Academies, logg))
			r.Get("/{academyId}", controllers.AcademyGet(deps.Academies, logg))

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/", controllers.AcademyCreate(deps.Academies, logg))
				r.Put("/{academyId}", controllers.AcademyUpdate(deps.Academies, logg))
				r.Delete("/{academyId}", controllers.AcademyDelete(deps.Academies, logg))
			})
		})

		if deps.DeadLetters != nil {
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/admin/outbox/dead-letters", controllers.DeadLetterList(deps.DeadLetters, logg))
				r.Post("/admin/outbox/dead-letters/{eventId}/requeue", controllers.DeadLetterRequeue(deps.DeadLetters, logg))
			})
		}
	})

	return r
}

// A nil *redis.Client must not reach the middleware as a non-nil interface.

func pingerOrNil(c *redis.Client) controllers.Pinger {
	if c == nil {
		return nil
	}
	return c
}

func idempotencyStore(c *redis.Client) middleware.ResponseStore {
	if c == nil {
		return nil
	}
	return c
}

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func rateLimiterOrNil(c *redis.Client) windowLimiter {
	if c == nil {
		return nil
	}
	return c
}
