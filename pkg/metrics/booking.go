package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Booking outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeFailed    = "failed"
)

// BookingMetrics tracks the payment-and-subscription transaction.
type BookingMetrics struct {
	bookings *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  prometheus.Counter
	invoices *prometheus.CounterVec
}

// NewBookingMetrics registers the booking metrics on the provided registerer.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_bookings_total",
		Help: "Booking requests by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_booking_duration_seconds",
		Help:    "Wall time of booking requests including retries.",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_booking_tx_retries_total",
		Help: "Booking transactions re-run after a serialization conflict.",
	})
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_invoices_issued_total",
		Help: "Invoice numbers committed per billing domain.",
	}, []string{"domain"})
	reg.MustRegister(bookings, duration, retries, invoices)
	return &BookingMetrics{
		bookings: bookings,
		duration: duration,
		retries:  retries,
		invoices: invoices,
	}
}

// ObserveAttempt records one finished booking request.
func (b *BookingMetrics) ObserveAttempt(outcome string, elapsed time.Duration) {
	if b == nil || b.bookings == nil {
		return
	}
	b.bookings.WithLabelValues(outcome).Inc()
	b.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// IncRetry counts a transaction retry.
func (b *BookingMetrics) IncRetry() {
	if b == nil || b.retries == nil {
		return
	}
	b.retries.Inc()
}

// IncInvoice counts a committed invoice number.
func (b *BookingMetrics) IncInvoice(domain string) {
	if b == nil || b.invoices == nil {
		return
	}
	b.invoices.WithLabelValues(normalizeLabel(domain)).Inc()
}
