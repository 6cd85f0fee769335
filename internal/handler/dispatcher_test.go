package handler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/protocol"
	"github.com/iliyamo/seat-booking-server/internal/queue"
	"github.com/iliyamo/seat-booking-server/internal/repository"
	"github.com/iliyamo/seat-booking-server/internal/session"
	"github.com/iliyamo/seat-booking-server/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	store  *repository.Store
	d      *Dispatcher
	events *recordingPublisher
	show   testutil.Showing
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	pub := &recordingPublisher{}
	return &fixture{
		store:  store,
		d:      NewDispatcher(store, nil, pub, nil),
		events: pub,
		show:   testutil.AddShowing(t, store, "Heat", "A1", "A2"),
	}
}

func (f *fixture) do(sess *session.Session, req protocol.Request) protocol.Response {
	req.Name = req.Action.String()
	return f.d.Dispatch(context.Background(), sess, req)
}

func (f *fixture) login(t *testing.T, username string) *session.Session {
	t.Helper()
	testutil.AddUser(t, f.store, username, "pw")
	sess := session.New(username)
	resp := f.do(sess, protocol.Request{Action: protocol.ActionLogin, Username: username, Password: "pw"})
	require.True(t, resp.IsOK(), "%v", resp)
	return sess
}

func assertError(t *testing.T, resp protocol.Response, kind protocol.Kind, msg string) {
	t.Helper()
	assert.Equal(t, protocol.StatusError, resp.Status())
	assert.Equal(t, kind.Code(), resp.Text("code"))
	assert.Equal(t, msg, resp.Text("message"))
}

func TestDispatch_AuthGating(t *testing.T) {
	f := newFixture(t)
	anon := session.New("anon")
	seat := f.show.Seats["A1"]

	for _, req := range []protocol.Request{
		{Action: protocol.ActionBookSeat, SeatID: protocol.ID(seat.ID)},
		{Action: protocol.ActionBookSeat},
		{Action: protocol.ActionMyBookings},
		{Action: protocol.ActionCancelBooking, BookingID: 1},
	} {
		t.Run(req.Action.String(), func(t *testing.T) {
			assertError(t, f.do(anon, req), protocol.KindUnauthorized, "login required")
		})
	}

	n, err := f.store.Bookings.CountForSeat(context.Background(), seat.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	got, err := f.store.Seats.GetByID(context.Background(), seat.ID)
	require.NoError(t, err)
	assert.False(t, got.Booked)
	assert.Empty(t, f.events.events)
}

func TestDispatch_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	sess := session.New("c1")

	resp := f.do(sess, protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "pw"})
	assert.Equal(t, protocol.Message("registered"), resp)

	resp = f.do(sess, protocol.Request{Action: protocol.ActionRegister, Username: "alice", Password: "other"})
	assertError(t, resp, protocol.KindConflict, "username exists")

	for _, req := range []protocol.Request{
		{Action: protocol.ActionRegister, Username: "bob"},
		{Action: protocol.ActionRegister, Password: "pw"},
		{Action: protocol.ActionLogin, Username: "   ", Password: "pw"},
	} {
		assertError(t, f.do(sess, req), protocol.KindBadRequest, "username & password required")
	}
	assert.Equal(t, session.Anonymous, sess.State(), "register does not log in")

	resp = f.do(sess, protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "pw"})
	require.True(t, resp.IsOK())
	assert.Equal(t, "logged_in", resp.Text("message"))
	u, ok := resp["user"].(model.User)
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.PasswordHash)
	assert.Equal(t, session.Authenticated, sess.State())

	// A failed login drops the previous identity.
	resp = f.do(sess, protocol.Request{Action: protocol.ActionLogin, Username: "alice", Password: "bad"})
	assertError(t, resp, protocol.KindUnauthorized, "invalid credentials")
	assert.Equal(t, session.Anonymous, sess.State())

	resp = f.do(sess, protocol.Request{Action: protocol.ActionLogin, Username: "nobody", Password: "pw"})
	assertError(t, resp, protocol.KindUnauthorized, "invalid credentials")

	resp = f.do(sess, protocol.Request{Action: protocol.ActionLogout})
	assert.Equal(t, protocol.Message("logged_out"), resp)
}

func TestDispatch_Catalog(t *testing.T) {
	f := newFixture(t)
	other := testutil.AddShowing(t, f.store, "Ronin", "C1")
	anon := session.New("anon")

	resp := f.do(anon, protocol.Request{Action: protocol.ActionListMovies})
	require.True(t, resp.IsOK())
	movies := resp["movies"].([]model.Event)
	assert.Len(t, movies, 2)

	resp = f.do(anon, protocol.Request{Action: protocol.ActionListScreenings})
	assert.Len(t, resp["screenings"].([]model.Showing), 2)

	resp = f.do(anon, protocol.Request{Action: protocol.ActionListScreenings, MovieID: protocol.ID(other.Event.ID)})
	showings := resp["screenings"].([]model.Showing)
	require.Len(t, showings, 1)
	assert.Equal(t, other.Showing.ID, showings[0].ID)

	resp = f.do(anon, protocol.Request{Action: protocol.ActionListSeats, ScreeningID: protocol.ID(f.show.Showing.ID)})
	seats := resp["seats"].([]model.Seat)
	require.Len(t, seats, 2)
	assert.Equal(t, "A1", seats[0].Label)

	assertError(t, f.do(anon, protocol.Request{Action: protocol.ActionListSeats}),
		protocol.KindBadRequest, "screening_id required")
	assertError(t, f.do(anon, protocol.Request{Action: protocol.ActionListSeats, ScreeningID: 9999}),
		protocol.KindNotFound, "screening not found")
}

func TestDispatch_BookAndCancel(t *testing.T) {
	f := newFixture(t)
	alice := f.login(t, "alice")
	bob := f.login(t, "bob")
	seatID := protocol.ID(f.show.Seats["A1"].ID)

	assertError(t, f.do(alice, protocol.Request{Action: protocol.ActionBookSeat}),
		protocol.KindBadRequest, "seat_id required")
	assertError(t, f.do(alice, protocol.Request{Action: protocol.ActionBookSeat, SeatID: 9999}),
		protocol.KindNotFound, "seat not found")

	resp := f.do(alice, protocol.Request{Action: protocol.ActionBookSeat, SeatID: seatID})
	require.True(t, resp.IsOK(), "%v", resp)
	assert.Equal(t, "booked", resp.Text("message"))
	assert.Equal(t, uint64(seatID), resp["seat_id"])
	bookingID, ok := resp.Number("booking_id")
	require.True(t, ok)

	assertError(t, f.do(bob, protocol.Request{Action: protocol.ActionBookSeat, SeatID: seatID}),
		protocol.KindConflict, "seat already booked")

	resp = f.do(alice, protocol.Request{Action: protocol.ActionMyBookings})
	views := resp["bookings"].([]model.BookingView)
	require.Len(t, views, 1)
	assert.Equal(t, "A1", views[0].SeatLabel)
	assert.Equal(t, bookingID, views[0].BookingID)

	resp = f.do(bob, protocol.Request{Action: protocol.ActionMyBookings})
	assert.Empty(t, resp["bookings"])

	assertError(t, f.do(alice, protocol.Request{Action: protocol.ActionCancelBooking}),
		protocol.KindBadRequest, "booking_id required")
	assertError(t, f.do(bob, protocol.Request{Action: protocol.ActionCancelBooking, BookingID: protocol.ID(bookingID)}),
		protocol.KindNotFound, "booking not found or not yours")

	resp = f.do(alice, protocol.Request{Action: protocol.ActionCancelBooking, BookingID: protocol.ID(bookingID)})
	assert.Equal(t, protocol.Message("canceled"), resp)
	assertError(t, f.do(alice, protocol.Request{Action: protocol.ActionCancelBooking, BookingID: protocol.ID(bookingID)}),
		protocol.KindNotFound, "booking not found or not yours")

	require.Len(t, f.events.events, 2)
	assert.Equal(t, queue.TypeBookingConfirmed, f.events.events[0].Type)
	assert.Equal(t, queue.TypeBookingCanceled, f.events.events[1].Type)
	assert.Equal(t, "alice", f.events.events[1].Username)
	assert.Equal(t, f.show.Showing.ID, f.events.events[1].ShowingID)
	assert.Equal(t, bookingID, f.events.events[1].BookingID)
}

func TestDispatch_ConcurrentBooking(t *testing.T) {
	f := newFixture(t)
	seatID := protocol.ID(f.show.Seats["A2"].ID)

	const n = 12
	sessions := make([]*session.Session, n)
	for i := range sessions {
		sessions[i] = f.login(t, fmt.Sprintf("u%02d", i))
	}

	responses := make([]protocol.Response, n)
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i] = f.do(sessions[i], protocol.Request{Action: protocol.ActionBookSeat, SeatID: seatID})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, r := range responses {
		switch r.Code() {
		case protocol.StatusOK:
			ok++
		case protocol.KindConflict.Code():
			conflicts++
		default:
			t.Errorf("unexpected response %v", r)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	count, err := f.store.Bookings.CountForSeat(context.Background(), uint64(seatID))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDispatch_UnknownAction(t *testing.T) {
	f := newFixture(t)
	resp := f.d.Dispatch(context.Background(), session.New("c"), protocol.Request{Name: "fly"})
	assertError(t, resp, protocol.KindUnknownAction, "unknown action")
}

func TestDispatch_StoreFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.DB.Close())

	resp := f.do(session.New("c"), protocol.Request{Action: protocol.ActionListMovies})
	assertError(t, resp, protocol.KindStoreFailure, "db error")
	assert.NotEmpty(t, resp.Text("detail"))
}
