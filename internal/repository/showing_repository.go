package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-booking-server/internal/model"
)

// ShowingRepo manages persistence for showings (the `screenings` table).
type ShowingRepo struct {
	db *sql.DB
}

// NewShowingRepo constructs a ShowingRepo with the given DB handle.
func NewShowingRepo(db *sql.DB) *ShowingRepo { return &ShowingRepo{db: db} }

// Create inserts a showing and populates its ID.  The referenced event must
// exist (enforced by the foreign key) and the price must not be negative.
func (r *ShowingRepo) Create(ctx context.Context, s *model.Showing) error {
	if s.Price.IsNegative() {
		return ErrNegativePrice
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO screenings (movie_id, start_time, price) VALUES (?, ?, ?)`,
		s.EventID, s.StartTime.UTC(), s.Price)
	if err != nil {
		return fmt.Errorf("insert showing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("showing id: %w", err)
	}
	s.ID = uint64(id)
	return nil
}

// List returns showings ordered by start time.  When eventID is nil all
// showings are returned; otherwise only those of that event (an unknown
// event simply yields an empty list).
func (r *ShowingRepo) List(ctx context.Context, eventID *uint64) ([]model.Showing, error) {
	const base = `SELECT id, movie_id, start_time, price FROM screenings`
	var (
		rows *sql.Rows
		err  error
	)
	if eventID != nil {
		rows, err = r.db.QueryContext(ctx, base+` WHERE movie_id = ? ORDER BY start_time, id`, *eventID)
	} else {
		rows, err = r.db.QueryContext(ctx, base+` ORDER BY start_time, id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list showings: %w", err)
	}
	defer rows.Close()

	result := make([]model.Showing, 0)
	for rows.Next() {
		var s model.Showing
		if err := rows.Scan(&s.ID, &s.EventID, &s.StartTime, &s.Price); err != nil {
			return nil, err
		}
		s.StartTime = s.StartTime.UTC()
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID fetches a single showing.  It returns ErrShowingNotFound when the
// id does not exist.
func (r *ShowingRepo) GetByID(ctx context.Context, id uint64) (model.Showing, error) {
	var s model.Showing
	err := r.db.QueryRowContext(ctx,
		`SELECT id, movie_id, start_time, price FROM screenings WHERE id = ?`, id).
		Scan(&s.ID, &s.EventID, &s.StartTime, &s.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Showing{}, ErrShowingNotFound
	}
	if err != nil {
		return model.Showing{}, fmt.Errorf("get showing: %w", err)
	}
	s.StartTime = s.StartTime.UTC()
	return s, nil
}
