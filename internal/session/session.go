// Package session tracks who is speaking on one client connection.
//
// A Session is owned by a single connection goroutine and handed to the
// dispatcher by pointer; it is never shared, so it carries no lock.
package session

import "github.com/iliyamo/seat-booking-server/internal/model"

// State is the authentication state of a session.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session is either anonymous or bound to one user.
type Session struct {
	ID    string // connection id, for logs
	state State
	user  model.User
}

// New returns an anonymous session.
func New(id string) *Session { return &Session{ID: id} }

// State reports the current state.
func (s *Session) State() State { return s.state }

// User returns the bound user and whether the session is authenticated.
func (s *Session) User() (model.User, bool) {
	if s.state != Authenticated {
		return model.User{}, false
	}
	return s.user, true
}

// UserID returns the bound user's id, or 0 when anonymous.
func (s *Session) UserID() uint64 {
	if s.state != Authenticated {
		return 0
	}
	return s.user.ID
}

// Login binds the session to u, replacing any previous identity.
func (s *Session) Login(u model.User) {
	u.PasswordHash = ""
	s.user = u
	s.state = Authenticated
}

// Logout drops the identity.  It is a no-op on an anonymous session.
func (s *Session) Logout() {
	s.user = model.User{}
	s.state = Anonymous
}
