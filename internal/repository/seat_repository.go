package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/seat-booking-server/internal/model"
)

// SeatRepo provides methods to work with seats in the database.  Seat
// availability is only ever changed by BookingRepo inside a transaction;
// this repository reads seats and creates them for the seeder.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// CreateBulk inserts one free seat per label for a showing in a single
// statement.
func (r *SeatRepo) CreateBulk(ctx context.Context, showingID uint64, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	var query strings.Builder
	query.WriteString(`INSERT INTO seats (screening_id, seat_label) VALUES `)
	args := make([]any, 0, len(labels)*2)
	for i, label := range labels {
		if i > 0 {
			query.WriteString(",")
		}
		query.WriteString("(?, ?)")
		args = append(args, showingID, label)
	}
	if _, err := r.db.ExecContext(ctx, query.String(), args...); err != nil {
		return fmt.Errorf("insert seats: %w", err)
	}
	return nil
}

// ListByShowing returns the seats of a showing ordered by label.  It
// returns ErrShowingNotFound when the showing does not exist, so callers can
// tell an unknown showing from one without seats.
func (r *SeatRepo) ListByShowing(ctx context.Context, showingID uint64) ([]model.Seat, error) {
	const q = `SELECT id, screening_id, seat_label, is_booked
	           FROM seats
	           WHERE screening_id = ?
	           ORDER BY seat_label`
	rows, err := r.db.QueryContext(ctx, q, showingID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	result := make([]model.Seat, 0)
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.ShowingID, &s.Label, &s.Booked); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM screenings WHERE id = ?`, showingID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowingNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("check showing: %w", err)
		}
	}
	return result, nil
}

// GetByID retrieves a seat by its id.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (model.Seat, error) {
	var s model.Seat
	err := r.db.QueryRowContext(ctx,
		`SELECT id, screening_id, seat_label, is_booked FROM seats WHERE id = ?`, id).
		Scan(&s.ID, &s.ShowingID, &s.Label, &s.Booked)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, ErrSeatNotFound
	}
	if err != nil {
		return model.Seat{}, fmt.Errorf("get seat: %w", err)
	}
	return s, nil
}
