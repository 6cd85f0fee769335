// Package seed fills an empty store with a small sample catalog and a test
// user, so a fresh server has something to book.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/repository"
)

// DefaultLabels are the seats created for every sample showing.
var DefaultLabels = []string{"A1", "A2", "A3", "A4", "A5", "B1", "B2", "B3", "B4", "B5"}

// Result reports what Sample created.  It is empty when the catalog already
// had events.
type Result struct {
	Events   []model.Event
	Showings []model.Showing
	UserID   uint64
}

// Sample creates three events (two movies and one trip), two showings each
// starting a few hours after now, ten seats per showing and the user
// testuser/password.  It does nothing if any event already exists.
func Sample(ctx context.Context, store *repository.Store, now time.Time) (Result, error) {
	n, err := store.Events.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count events: %w", err)
	}
	if n > 0 {
		return Result{}, nil
	}

	var res Result
	events := []model.Event{
		{Title: "Avengers: Endgame", IsMovie: true},
		{Title: "Spider-Man: No Way Home", IsMovie: true},
		{Title: "Saigon - Hanoi coach", IsMovie: false},
	}
	for i := range events {
		if err := store.Events.Create(ctx, &events[i]); err != nil {
			return Result{}, err
		}
		for slot := 1; slot <= 2; slot++ {
			sh := model.Showing{
				EventID:   events[i].ID,
				StartTime: now.Add(time.Duration(2*(i+1)+slot) * time.Hour).UTC().Truncate(time.Second),
				Price:     decimal.NewFromInt(int64(50 + 10*i + 5*slot)),
			}
			if err := store.Showings.Create(ctx, &sh); err != nil {
				return Result{}, err
			}
			if err := store.Seats.CreateBulk(ctx, sh.ID, DefaultLabels); err != nil {
				return Result{}, err
			}
			res.Showings = append(res.Showings, sh)
		}
		res.Events = append(res.Events, events[i])
	}

	uid, err := store.Users.Create(ctx, "testuser", "password")
	if err != nil {
		return Result{}, fmt.Errorf("create test user: %w", err)
	}
	res.UserID = uid
	return res, nil
}
