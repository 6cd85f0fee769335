package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Showing is a scheduled instance of an Event (a screening, or a departure
// for trips).  Each showing owns its seat inventory.  Rows live in the
// `screenings` table.
//
// Fields:
//
//	ID        – primary key identifier.
//	EventID   – event being shown; must reference an existing Event.
//	StartTime – when the showing begins (UTC).
//	Price     – non-negative seat price.
type Showing struct {
	ID        uint64          `json:"id"`         // screenings.id
	EventID   uint64          `json:"movie_id"`   // screenings.movie_id
	StartTime time.Time       `json:"start_time"` // screenings.start_time
	Price     decimal.Decimal `json:"price"`      // screenings.price
}
