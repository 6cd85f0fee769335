// Package protocol defines the wire format shared by the TCP listener, the
// HTTP gateway and the command line client: request and response objects,
// the action enum, the error kinds and the newline-delimited JSON codec.
package protocol

// Action identifies what a request asks for.  It is resolved from the
// request's "action" string once, at decode time.
type Action int

const (
	ActionUnknown Action = iota
	ActionRegister
	ActionLogin
	ActionLogout
	ActionListMovies
	ActionListScreenings
	ActionListSeats
	ActionBookSeat
	ActionMyBookings
	ActionCancelBooking
)

var actionNames = map[Action]string{
	ActionRegister:       "register",
	ActionLogin:          "login",
	ActionLogout:         "logout",
	ActionListMovies:     "list_movies",
	ActionListScreenings: "list_screenings",
	ActionListSeats:      "list_seats",
	ActionBookSeat:       "book_seat",
	ActionMyBookings:     "my_bookings",
	ActionCancelBooking:  "cancel_booking",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, n := range actionNames {
		m[n] = a
	}
	return m
}()

// ParseAction maps a wire name to an Action.  Unrecognized names, including
// the empty string, yield ActionUnknown.
func ParseAction(name string) Action {
	if a, ok := actionsByName[name]; ok {
		return a
	}
	return ActionUnknown
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

// Actions lists every known action in declaration order.
func Actions() []Action {
	out := make([]Action, 0, len(actionNames))
	for a := ActionRegister; a <= ActionCancelBooking; a++ {
		out = append(out, a)
	}
	return out
}
