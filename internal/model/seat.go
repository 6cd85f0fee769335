package model

// Seat is a bookable unit of exactly one showing.  Labels (e.g. "A1") are
// unique within a showing.  Booked flips to true only when a Booking is
// created for the seat and back to false only when that Booking is
// cancelled, so Booked is true iff exactly one Booking references the seat.
type Seat struct {
	ID        uint64 `json:"id"`         // seats.id
	ShowingID uint64 `json:"-"`          // seats.screening_id
	Label     string `json:"seat_label"` // seats.seat_label
	Booked    bool   `json:"is_booked"`  // seats.is_booked
}
