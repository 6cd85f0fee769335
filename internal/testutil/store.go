// Package testutil provides shared fixtures for package tests: a migrated
// SQLite store in a temporary directory and small catalog builders.
//
// All helpers call t.Fatalf (through require) on failure, since fixture
// failures are not recoverable.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seat-booking-server/internal/database"
	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/repository"
)

// NewStore opens a migrated SQLite store in t.TempDir().  The database is a
// real file so that several pool connections (and therefore concurrent
// transactions) share it.  Passwords use the minimum bcrypt cost.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.SQLite))
	return repository.NewStore(db, database.SQLite, bcrypt.MinCost)
}

// Showing is a fixture showing with its seats keyed by label.
type Showing struct {
	Event   model.Event
	Showing model.Showing
	Seats   map[string]model.Seat
}

// AddShowing creates an event, one showing of it and the given seats.
func AddShowing(t testing.TB, store *repository.Store, title string, labels ...string) Showing {
	t.Helper()
	ctx := context.Background()
	ev := model.Event{Title: title, IsMovie: true}
	require.NoError(t, store.Events.Create(ctx, &ev))
	sh := model.Showing{
		EventID:   ev.ID,
		StartTime: time.Date(2030, 1, 2, 19, 30, 0, 0, time.UTC),
		Price:     decimal.RequireFromString("12.50"),
	}
	require.NoError(t, store.Showings.Create(ctx, &sh))
	require.NoError(t, store.Seats.CreateBulk(ctx, sh.ID, labels))

	seats, err := store.Seats.ListByShowing(ctx, sh.ID)
	require.NoError(t, err)
	byLabel := make(map[string]model.Seat, len(seats))
	for _, s := range seats {
		byLabel[s.Label] = s
	}
	return Showing{Event: ev, Showing: sh, Seats: byLabel}
}

// AddUser registers a user and returns its id.
func AddUser(t testing.TB, store *repository.Store, username, password string) uint64 {
	t.Helper()
	id, err := store.Users.Create(context.Background(), username, password)
	require.NoError(t, err)
	return id
}
