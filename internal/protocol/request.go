package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is an entity identifier on the wire.  Clients send either a JSON number
// or a numeric string; both decode to the same value.  Zero means absent.
type ID uint64

// UnmarshalJSON accepts 42, "42", null and "".  Anything else is a
// *ValueError.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*id = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*id = 0
			return nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 63) // ids above MaxInt64 cannot reach the store
	if err != nil {
		return &ValueError{Value: s, Want: "a non-negative integer id"}
	}
	*id = ID(n)
	return nil
}

// ValueError reports a well-formed JSON value that does not fit a field.
type ValueError struct {
	Value string
	Want  string
}

func (e *ValueError) Error() string { return fmt.Sprintf("%s is not %s", e.Value, e.Want) }

// Request is one client request.  Parameters are top-level fields next to
// "action"; which ones matter depends on the action.
type Request struct {
	Action Action `json:"-"`
	Name   string `json:"action"`

	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	MovieID     ID `json:"movie_id,omitempty"`
	ScreeningID ID `json:"screening_id,omitempty"`
	SeatID      ID `json:"seat_id,omitempty"`
	BookingID   ID `json:"booking_id,omitempty"`
}

// NewRequest returns a request for a with no parameters.
func NewRequest(a Action) Request { return Request{Action: a, Name: a.String()} }

// UnmarshalJSON decodes the wire fields and resolves Action from Name.
func (r *Request) UnmarshalJSON(b []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = Request(p)
	r.Action = ParseAction(r.Name)
	return nil
}

// Set assigns a parameter by its wire name from a string value, as typed on
// a command line.  It returns an error for unknown keys or bad ids.
func (r *Request) Set(key, value string) error {
	var dst *ID
	switch key {
	case "username":
		r.Username = value
		return nil
	case "password":
		r.Password = value
		return nil
	case "movie_id":
		dst = &r.MovieID
	case "screening_id":
		dst = &r.ScreeningID
	case "seat_id":
		dst = &r.SeatID
	case "booking_id":
		dst = &r.BookingID
	default:
		return fmt.Errorf("unknown parameter %q", key)
	}
	return dst.UnmarshalJSON([]byte(strconv.Quote(value)))
}
