// Package metrics exposes Prometheus instruments for the channeling server.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes used as the outcome label.
const (
	OutcomeBooked   = "booked"
	OutcomeFull     = "capacity_exceeded"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeFailed   = "failed"
)

type Collector struct {
	gatherer prometheus.Gatherer

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	bookings          *prometheus.CounterVec
	bookingDuration   prometheus.Histogram
	numberCollisions  prometheus.Counter
	statusTransitions *prometheus.CounterVec
	reminders         *prometheus.CounterVec
}

// New registers the instruments on reg. Passing prometheus.NewRegistry()
// keeps tests isolated from the global registry.
func New(reg *prometheus.Registry) *Collector {
	c := &Collector{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channeling_bookings_total",
			Help: "Appointment booking attempts by outcome",
		}, []string{"outcome"}),
		bookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "channeling_booking_duration_seconds",
			Help:    "Time spent in the booking transaction including retries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		numberCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "channeling_booking_retries_total",
			Help: "Booking transactions retried after a number collision or serialization conflict",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channeling_status_transitions_total",
			Help: "Status changes applied, by entity",
		}, []string{"entity", "from", "to"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channeling_reminders_total",
			Help: "Appointment reminder emails by result",
		}, []string{"result"}),
	}
	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.bookings,
		c.bookingDuration,
		c.numberCollisions,
		c.statusTransitions,
		c.reminders,
	)
	return c
}

func (c *Collector) RecordBooking(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.bookings.WithLabelValues(outcome).Inc()
	c.bookingDuration.Observe(d.Seconds())
}

func (c *Collector) RecordBookingRetry() {
	if c == nil {
		return
	}
	c.numberCollisions.Inc()
}

func (c *Collector) RecordTransition(entity, from, to string) {
	if c == nil {
		return
	}
	c.statusTransitions.WithLabelValues(entity, from, to).Inc()
}

func (c *Collector) RecordReminder(sent bool) {
	if c == nil {
		return
	}
	result := "sent"
	if !sent {
		result = "failed"
	}
	c.reminders.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by route template, so
// path parameters do not explode label cardinality.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
