package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seat-booking-server/internal/database"
	"github.com/iliyamo/seat-booking-server/internal/model"
)

// BookingRepo creates, lists and cancels bookings.  It is the only code that
// changes seats.is_booked, and it always does so in the same transaction
// that inserts or deletes the matching bookings row.
type BookingRepo struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time

	// beforeUpdate runs between the availability read and the conditional
	// update; tests use it to simulate a competing writer.
	beforeUpdate func(ctx context.Context, tx *sql.Tx) error
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB, dialect database.Dialect) *BookingRepo {
	return &BookingRepo{db: db, dialect: dialect, now: time.Now}
}

// Book reserves a seat for a user and returns the new booking.
//
// The transaction holds the write intent from its first statement (BEGIN
// IMMEDIATE on SQLite, a FOR UPDATE row lock on MySQL), reads the seat, and
// then flips the flag with a conditional update that only matches a free
// seat.  If that update matches no row another writer won the seat and
// ErrBookingRace is returned.  Expected outcomes are ErrSeatNotFound,
// ErrSeatAlreadyBooked and ErrBookingRace; anything else is a storage error.
// Nothing is left applied on any error.
func (r *BookingRepo) Book(ctx context.Context, userID, seatID uint64) (model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin booking: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		booked    bool
		showingID uint64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT is_booked, screening_id FROM seats WHERE id = ?`+r.dialect.LockClause(),
		seatID).Scan(&booked, &showingID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrSeatNotFound
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("read seat: %w", err)
	}
	if booked {
		return model.Booking{}, ErrSeatAlreadyBooked
	}

	if r.beforeUpdate != nil {
		if err := r.beforeUpdate(ctx, tx); err != nil {
			return model.Booking{}, err
		}
	}

	// Compare-and-swap: only a seat that is still free is claimed.
	res, err := tx.ExecContext(ctx,
		`UPDATE seats SET is_booked = 1 WHERE id = ? AND is_booked = 0`, seatID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("claim seat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, fmt.Errorf("claim seat: %w", err)
	}
	if n != 1 {
		return model.Booking{}, ErrBookingRace
	}

	b := model.Booking{
		UserID:    userID,
		SeatID:    seatID,
		ShowingID: showingID,
		BookedAt:  r.now().UTC(),
	}
	res, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, seat_id, booked_at) VALUES (?, ?, ?)`,
		b.UserID, b.SeatID, b.BookedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return model.Booking{}, ErrBookingRace
		}
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking id: %w", err)
	}
	b.ID = uint64(id)

	if err := tx.Commit(); err != nil {
		return model.Booking{}, fmt.Errorf("commit booking: %w", err)
	}
	committed = true
	return b, nil
}

// Cancel deletes a booking owned by userID and frees its seat in one
// transaction.  It returns ErrBookingNotFound when the booking does not
// exist or belongs to someone else.  The cancelled booking is returned.
func (r *BookingRepo) Cancel(ctx context.Context, userID, bookingID uint64) (model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin cancel: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b := model.Booking{ID: bookingID, UserID: userID}
	err = tx.QueryRowContext(ctx,
		`SELECT b.seat_id, s.screening_id, b.booked_at
		 FROM bookings b
		 JOIN seats s ON s.id = b.seat_id
		 WHERE b.id = ? AND b.user_id = ?`+r.dialect.LockClause(),
		bookingID, userID).Scan(&b.SeatID, &b.ShowingID, &b.BookedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("read booking: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, bookingID); err != nil {
		return model.Booking{}, fmt.Errorf("delete booking: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE seats SET is_booked = 0 WHERE id = ?`, b.SeatID); err != nil {
		return model.Booking{}, fmt.Errorf("release seat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Booking{}, fmt.Errorf("commit cancel: %w", err)
	}
	committed = true
	b.BookedAt = b.BookedAt.UTC()
	return b, nil
}

// ListByUser returns the user's bookings joined with seat, showing and event
// details, newest first.  When no bookings exist, an empty slice is
// returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingView, error) {
	const q = `SELECT b.id, b.booked_at, s.id, s.seat_label, sc.id, sc.start_time, m.title
	           FROM bookings b
	           JOIN seats s ON b.seat_id = s.id
	           JOIN screenings sc ON s.screening_id = sc.id
	           JOIN movies m ON sc.movie_id = m.id
	           WHERE b.user_id = ?
	           ORDER BY b.booked_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	views := make([]model.BookingView, 0)
	for rows.Next() {
		var v model.BookingView
		if err := rows.Scan(&v.BookingID, &v.BookedAt, &v.SeatID, &v.SeatLabel,
			&v.ShowingID, &v.StartTime, &v.Title); err != nil {
			return nil, err
		}
		v.BookedAt = v.BookedAt.UTC()
		v.StartTime = v.StartTime.UTC()
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return views, nil
}

// CountForSeat returns how many bookings reference a seat.  The invariant
// keeps it at 0 or 1; it exists for consistency checks.
func (r *BookingRepo) CountForSeat(ctx context.Context, seatID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE seat_id = ?`, seatID).Scan(&n)
	return n, err
}
