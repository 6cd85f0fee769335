package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/seat-booking-server/internal/database"
)

// Store bundles the repositories that share one database handle.  It is the
// single shared mutable resource of the server; all cross-connection
// coordination happens through its transactions.
type Store struct {
	DB       *sql.DB
	Dialect  database.Dialect
	Users    *UserRepo
	Events   *EventRepo
	Showings *ShowingRepo
	Seats    *SeatRepo
	Bookings *BookingRepo
}

// NewStore wires every repository to db.
func NewStore(db *sql.DB, dialect database.Dialect, bcryptCost int) *Store {
	return &Store{
		DB:       db,
		Dialect:  dialect,
		Users:    NewUserRepo(db, bcryptCost),
		Events:   NewEventRepo(db),
		Showings: NewShowingRepo(db),
		Seats:    NewSeatRepo(db),
		Bookings: NewBookingRepo(db, dialect),
	}
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }
