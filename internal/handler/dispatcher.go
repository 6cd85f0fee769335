package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seat-booking-server/internal/cache"
	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/monitoring"
	"github.com/iliyamo/seat-booking-server/internal/protocol"
	"github.com/iliyamo/seat-booking-server/internal/queue"
	"github.com/iliyamo/seat-booking-server/internal/repository"
	"github.com/iliyamo/seat-booking-server/internal/session"
)

// DefaultTimeout bounds the store work of a single request.
const DefaultTimeout = 5 * time.Second

type actionFunc func(d *Dispatcher, ctx context.Context, sess *session.Session, req protocol.Request) (protocol.Response, error)

type route struct {
	auth   bool
	handle actionFunc
}

var routes = map[protocol.Action]route{
	protocol.ActionRegister:       {handle: (*Dispatcher).register},
	protocol.ActionLogin:          {handle: (*Dispatcher).login},
	protocol.ActionLogout:         {handle: (*Dispatcher).logout},
	protocol.ActionListMovies:     {handle: (*Dispatcher).listMovies},
	protocol.ActionListScreenings: {handle: (*Dispatcher).listScreenings},
	protocol.ActionListSeats:      {handle: (*Dispatcher).listSeats},
	protocol.ActionBookSeat:       {auth: true, handle: (*Dispatcher).bookSeat},
	protocol.ActionMyBookings:     {auth: true, handle: (*Dispatcher).myBookings},
	protocol.ActionCancelBooking:  {auth: true, handle: (*Dispatcher).cancelBooking},
}

// Dispatcher executes one request against the store on behalf of a
// session.  It is shared by every connection and holds no per-client state.
type Dispatcher struct {
	Store   *repository.Store
	Catalog *cache.Catalog
	Events  queue.Publisher
	Log     *slog.Logger
	Timeout time.Duration
	now     func() time.Time
}

// NewDispatcher wires a dispatcher.  catalog may be nil (no cache) and
// events may be nil (no broker).
func NewDispatcher(store *repository.Store, catalog *cache.Catalog, events queue.Publisher, log *slog.Logger) *Dispatcher {
	if events == nil {
		events = queue.Noop{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		Store:   store,
		Catalog: catalog,
		Events:  events,
		Log:     log,
		Timeout: DefaultTimeout,
		now:     time.Now,
	}
}

// Dispatch runs req and returns exactly one response object.  Required
// parameters and authentication are checked before the store is touched.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, req protocol.Request) protocol.Response {
	r, ok := routes[req.Action]
	if !ok {
		return protocol.UnknownAction().Response()
	}
	if r.auth && sess.State() != session.Authenticated {
		return protocol.Unauthorized().Response()
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	resp, err := r.handle(d, ctx, sess, req)
	if err != nil {
		return d.fail(sess, req, err).Response()
	}
	return resp
}

// fail translates a handler error into a protocol error.
func (d *Dispatcher) fail(sess *session.Session, req protocol.Request, err error) *protocol.Error {
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, repository.ErrUsernameExists):
		return protocol.Conflict(err.Error())
	case errors.Is(err, repository.ErrShowingNotFound),
		errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrBookingNotFound):
		return protocol.NotFound(err.Error())
	case errors.Is(err, repository.ErrSeatAlreadyBooked):
		monitoring.RecordConflict("already_booked")
		return protocol.Conflict(err.Error())
	case errors.Is(err, repository.ErrBookingRace):
		monitoring.RecordConflict("race")
		d.Log.Info("lost booking race", "conn", sess.ID, "user_id", sess.UserID(), "seat_id", req.SeatID)
		return protocol.Conflict(err.Error())
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return protocol.BadRequest("password too long")
	}
	d.Log.Error("store failure", "conn", sess.ID, "action", req.Action.String(), "error", err)
	return protocol.StoreFailure(err)
}

func credentials(req protocol.Request) (string, string, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return "", "", protocol.BadRequest("username & password required")
	}
	return username, req.Password, nil
}

func (d *Dispatcher) register(ctx context.Context, _ *session.Session, req protocol.Request) (protocol.Response, error) {
	username, password, err := credentials(req)
	if err != nil {
		return nil, err
	}
	if _, err := d.Store.Users.Create(ctx, username, password); err != nil {
		return nil, err
	}
	return protocol.Message("registered"), nil
}

// login drops any prior identity first, so a failed attempt leaves the
// session anonymous.
func (d *Dispatcher) login(ctx context.Context, sess *session.Session, req protocol.Request) (protocol.Response, error) {
	sess.Logout()
	username, password, err := credentials(req)
	if err != nil {
		return nil, err
	}
	u, ok, err := d.Store.Users.VerifyCredential(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &protocol.Error{Kind: protocol.KindUnauthorized, Message: "invalid credentials"}
	}
	sess.Login(u)
	d.Log.Info("login", "conn", sess.ID, "user_id", u.ID)
	return protocol.Message("logged_in").With("user", model.User{ID: u.ID, Username: u.Username}), nil
}

func (d *Dispatcher) logout(_ context.Context, sess *session.Session, _ protocol.Request) (protocol.Response, error) {
	sess.Logout()
	return protocol.Message("logged_out"), nil
}

func (d *Dispatcher) listMovies(ctx context.Context, _ *session.Session, _ protocol.Request) (protocol.Response, error) {
	events, err := d.Catalog.Events(ctx, d.Store.Events.List)
	if err != nil {
		return nil, err
	}
	return protocol.OK().With("movies", events), nil
}

func (d *Dispatcher) listScreenings(ctx context.Context, _ *session.Session, req protocol.Request) (protocol.Response, error) {
	var filter *uint64
	if req.MovieID != 0 {
		id := uint64(req.MovieID)
		filter = &id
	}
	showings, err := d.Catalog.Showings(ctx, filter, func(ctx context.Context) ([]model.Showing, error) {
		return d.Store.Showings.List(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return protocol.OK().With("screenings", showings), nil
}

func (d *Dispatcher) listSeats(ctx context.Context, _ *session.Session, req protocol.Request) (protocol.Response, error) {
	if req.ScreeningID == 0 {
		return nil, protocol.BadRequest("screening_id required")
	}
	seats, err := d.Store.Seats.ListByShowing(ctx, uint64(req.ScreeningID))
	if err != nil {
		return nil, err
	}
	return protocol.OK().With("seats", seats), nil
}

func (d *Dispatcher) bookSeat(ctx context.Context, sess *session.Session, req protocol.Request) (protocol.Response, error) {
	if req.SeatID == 0 {
		return nil, protocol.BadRequest("seat_id required")
	}
	u, _ := sess.User()
	b, err := d.Store.Bookings.Book(ctx, u.ID, uint64(req.SeatID))
	if err != nil {
		return nil, err
	}
	d.publish(ctx, queue.TypeBookingConfirmed, u, b)
	return protocol.Message("booked").
		With("seat_id", b.SeatID).
		With("booking_id", b.ID), nil
}

func (d *Dispatcher) myBookings(ctx context.Context, sess *session.Session, _ protocol.Request) (protocol.Response, error) {
	views, err := d.Store.Bookings.ListByUser(ctx, sess.UserID())
	if err != nil {
		return nil, err
	}
	return protocol.OK().With("bookings", views), nil
}

func (d *Dispatcher) cancelBooking(ctx context.Context, sess *session.Session, req protocol.Request) (protocol.Response, error) {
	if req.BookingID == 0 {
		return nil, protocol.BadRequest("booking_id required")
	}
	u, _ := sess.User()
	b, err := d.Store.Bookings.Cancel(ctx, u.ID, uint64(req.BookingID))
	if err != nil {
		return nil, err
	}
	d.publish(ctx, queue.TypeBookingCanceled, u, b)
	return protocol.Message("canceled"), nil
}

// publish is best effort: the booking is already committed.
func (d *Dispatcher) publish(ctx context.Context, typ string, u model.User, b model.Booking) {
	ev := queue.BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		UserID:     u.ID,
		Username:   u.Username,
		SeatID:     b.SeatID,
		ShowingID:  b.ShowingID,
		OccurredAt: d.now().UTC(),
	}
	if err := d.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		d.Log.Warn("booking event not published", "type", typ, "booking_id", b.ID, "error", err)
	}
}
