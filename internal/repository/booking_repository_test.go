package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-server/internal/repository"
	"github.com/iliyamo/seat-booking-server/internal/testutil"
)

// assertSeatConsistent checks that the seat flag and the bookings table agree.
func assertSeatConsistent(t *testing.T, store *repository.Store, seatID uint64) {
	t.Helper()
	ctx := context.Background()
	seat, err := store.Seats.GetByID(ctx, seatID)
	require.NoError(t, err)
	n, err := store.Bookings.CountForSeat(ctx, seatID)
	require.NoError(t, err)
	if seat.Booked {
		assert.Equal(t, 1, n, "booked seat %d must have exactly one booking", seatID)
	} else {
		assert.Equal(t, 0, n, "free seat %d must have no booking", seatID)
	}
}

func TestBookingRepo_Book(t *testing.T) {
	store := testutil.NewStore(t)
	sh := testutil.AddShowing(t, store, "Heat", "A1", "A2")
	alice := testutil.AddUser(t, store, "alice", "pw")
	ctx := context.Background()

	fixed := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	repository.SetClock(store.Bookings, func() time.Time { return fixed })

	t.Run("success", func(t *testing.T) {
		b, err := store.Bookings.Book(ctx, alice, sh.Seats["A1"].ID)
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		assert.Equal(t, alice, b.UserID)
		assert.Equal(t, sh.Showing.ID, b.ShowingID)
		assert.True(t, fixed.Equal(b.BookedAt))
		assertSeatConsistent(t, store, sh.Seats["A1"].ID)
	})

	t.Run("already booked", func(t *testing.T) {
		_, err := store.Bookings.Book(ctx, alice, sh.Seats["A1"].ID)
		assert.ErrorIs(t, err, repository.ErrSeatAlreadyBooked)
		n, err := store.Bookings.CountForSeat(ctx, sh.Seats["A1"].ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("unknown seat", func(t *testing.T) {
		_, err := store.Bookings.Book(ctx, alice, 999999)
		assert.ErrorIs(t, err, repository.ErrSeatNotFound)
	})
}

func TestBookingRepo_BookLosesRace(t *testing.T) {
	store := testutil.NewStore(t)
	sh := testutil.AddShowing(t, store, "Heat", "A1")
	alice := testutil.AddUser(t, store, "alice", "pw")
	seatID := sh.Seats["A1"].ID

	// A writer slips in between the read and the conditional update.
	repository.SetBeforeUpdate(store.Bookings, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE seats SET is_booked = 1 WHERE id = ?`, seatID)
		return err
	})

	_, err := store.Bookings.Book(context.Background(), alice, seatID)
	require.ErrorIs(t, err, repository.ErrBookingRace)

	// The whole transaction, including the interloper's write, rolled back.
	assertSeatConsistent(t, store, seatID)
	seat, err := store.Seats.GetByID(context.Background(), seatID)
	require.NoError(t, err)
	assert.False(t, seat.Booked)
}

func TestBookingRepo_ConcurrentBookingsOneWinner(t *testing.T) {
	store := testutil.NewStore(t)
	sh := testutil.AddShowing(t, store, "Heat", "A1")
	seatID := sh.Seats["A1"].ID

	const n = 16
	users := make([]uint64, n)
	for i := range users {
		users[i] = testutil.AddUser(t, store, fmt.Sprintf("user%02d", i), "pw")
	}

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		errs      = make([]error, n)
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = store.Bookings.Book(context.Background(), users[i], seatID)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t,
			errors.Is(err, repository.ErrSeatAlreadyBooked) || errors.Is(err, repository.ErrBookingRace),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)

	count, err := store.Bookings.CountForSeat(context.Background(), seatID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assertSeatConsistent(t, store, seatID)
}

func TestBookingRepo_Cancel(t *testing.T) {
	store := testutil.NewStore(t)
	sh := testutil.AddShowing(t, store, "Heat", "A1")
	alice := testutil.AddUser(t, store, "alice", "pw")
	bob := testutil.AddUser(t, store, "bob", "pw")
	ctx := context.Background()
	seatID := sh.Seats["A1"].ID

	b, err := store.Bookings.Book(ctx, alice, seatID)
	require.NoError(t, err)

	t.Run("not the owner", func(t *testing.T) {
		_, err := store.Bookings.Cancel(ctx, bob, b.ID)
		assert.ErrorIs(t, err, repository.ErrBookingNotFound)
		assertSeatConsistent(t, store, seatID)
		seat, err := store.Seats.GetByID(ctx, seatID)
		require.NoError(t, err)
		assert.True(t, seat.Booked)
	})

	t.Run("owner cancels once", func(t *testing.T) {
		canceled, err := store.Bookings.Cancel(ctx, alice, b.ID)
		require.NoError(t, err)
		assert.Equal(t, seatID, canceled.SeatID)
		assert.Equal(t, sh.Showing.ID, canceled.ShowingID)
		assertSeatConsistent(t, store, seatID)
	})

	t.Run("second cancel fails", func(t *testing.T) {
		_, err := store.Bookings.Cancel(ctx, alice, b.ID)
		assert.ErrorIs(t, err, repository.ErrBookingNotFound)
		seat, err := store.Seats.GetByID(ctx, seatID)
		require.NoError(t, err)
		assert.False(t, seat.Booked)
	})

	t.Run("seat can be booked again", func(t *testing.T) {
		_, err := store.Bookings.Book(ctx, bob, seatID)
		require.NoError(t, err)
		assertSeatConsistent(t, store, seatID)
	})
}

func TestBookingRepo_ListByUser(t *testing.T) {
	store := testutil.NewStore(t)
	sh := testutil.AddShowing(t, store, "Heat", "A1", "A2", "B1")
	alice := testutil.AddUser(t, store, "alice", "pw")
	bob := testutil.AddUser(t, store, "bob", "pw")
	ctx := context.Background()

	clock := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	repository.SetClock(store.Bookings, func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	empty, err := store.Bookings.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = store.Bookings.Book(ctx, alice, sh.Seats["A1"].ID)
	require.NoError(t, err)
	_, err = store.Bookings.Book(ctx, bob, sh.Seats["A2"].ID)
	require.NoError(t, err)
	_, err = store.Bookings.Book(ctx, alice, sh.Seats["B1"].ID)
	require.NoError(t, err)

	views, err := store.Bookings.ListByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "B1", views[0].SeatLabel, "newest booking first")
	assert.Equal(t, "A1", views[1].SeatLabel)
	assert.Equal(t, "Heat", views[0].Title)
	assert.Equal(t, sh.Showing.ID, views[0].ShowingID)
	assert.True(t, sh.Showing.StartTime.Equal(views[0].StartTime))
	assert.True(t, views[0].BookedAt.After(views[1].BookedAt))
}
