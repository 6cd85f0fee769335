// Package queue carries booking domain events over RabbitMQ: the event
// payload, a publisher used by the dispatcher and a consumer that keeps an
// append-only booking log.
package queue

import "time"

// Queue names double as event types.
const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCanceled  = "booking.canceled"
)

// Queues lists every queue the publisher and consumer declare.
var Queues = []string{TypeBookingConfirmed, TypeBookingCanceled}

// BookingEvent is published after a booking or a cancellation commits.  It
// carries enough for downstream consumers to log or notify without querying
// the store.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  uint64    `json:"booking_id"`
	UserID     uint64    `json:"user_id"`
	Username   string    `json:"username"`
	SeatID     uint64    `json:"seat_id"`
	ShowingID  uint64    `json:"screening_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
