package model

import "time"

// Booking records that a user owns a seat.  At most one Booking references
// any seat; cancelling deletes the row.
//
// Fields:
//
//	ID       – primary key identifier.
//	UserID   – user who made the booking.
//	SeatID   – seat that has been booked.
//	BookedAt – when the booking committed (UTC).
//	ShowingID – showing of the booked seat (not a bookings column).
type Booking struct {
	ID        uint64    // bookings.id
	UserID    uint64    // bookings.user_id
	SeatID    uint64    // bookings.seat_id
	BookedAt  time.Time // bookings.booked_at
	ShowingID uint64    // seats.screening_id
}

// BookingView is a booking joined with its seat, showing and event, as
// returned to the owning user by my_bookings.
type BookingView struct {
	BookingID uint64    `json:"booking_id"`
	BookedAt  time.Time `json:"booked_at"`
	SeatID    uint64    `json:"seat_id"`
	SeatLabel string    `json:"seat_label"`
	ShowingID uint64    `json:"screening_id"`
	StartTime time.Time `json:"start_time"`
	Title     string    `json:"title"`
}
