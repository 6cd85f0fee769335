package model

// User represents an account as stored in the `users` table.  The
// credential digest never leaves the repository layer, so it carries no
// JSON tag.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique, non-empty login name.
//	PasswordHash – opaque credential digest (bcrypt).
type User struct {
	ID           uint64 `json:"id"`       // users.id
	Username     string `json:"username"` // users.username
	PasswordHash string `json:"-"`        // users.password_hash
}
