// Package monitoring holds the Prometheus collectors of the booking server.
// They register with the default registry, which the HTTP gateway exposes
// on /metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_active_connections",
			Help: "Current number of open protocol connections",
		},
	)

	requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_requests_total",
			Help: "Requests handled, by action, transport and result code",
		},
		[]string{"action", "transport", "code"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_request_duration_seconds",
			Help:    "Time spent dispatching a request",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"action"},
	)

	bookingConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Booking attempts that lost to another booking",
		},
		[]string{"reason"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_events_published_total",
			Help: "Domain events handed to the broker",
		},
		[]string{"type", "result"},
	)
)

// ConnectionOpened and ConnectionClosed track live connections.
func ConnectionOpened() { activeConnections.Inc() }
func ConnectionClosed() { activeConnections.Dec() }

// RecordRequest counts one dispatched request.  code is "ok" or an error
// kind code.
func RecordRequest(action, transport, code string, elapsed time.Duration) {
	requests.WithLabelValues(action, transport, code).Inc()
	requestDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// RecordConflict counts a lost booking.  reason is "already_booked" or
// "race".
func RecordConflict(reason string) { bookingConflicts.WithLabelValues(reason).Inc() }

// RecordPublish counts a publish attempt; result is "ok" or "error".
func RecordPublish(eventType, result string) {
	eventsPublished.WithLabelValues(eventType, result).Inc()
}
