package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/iliyamo/seat-booking-server/internal/database"
	"github.com/iliyamo/seat-booking-server/internal/model"
	"github.com/iliyamo/seat-booking-server/internal/utils"
)

// UserRepo persists users and verifies their credentials.
type UserRepo struct {
	db   *sql.DB
	cost int // bcrypt cost for new digests

	dummyOnce sync.Once
	dummy     string // digest compared against when the username is unknown
}

func NewUserRepo(db *sql.DB, bcryptCost int) *UserRepo { return &UserRepo{db: db, cost: bcryptCost} }

// Create hashes the password and inserts the user, returning its ID.
func (r *UserRepo) Create(ctx context.Context, username, password string) (uint64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("username must not be empty")
	}
	hash, err := utils.HashPassword(password, r.cost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, hash)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, ErrUsernameExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user id: %w", err)
	}
	return uint64(id), nil
}

// VerifyCredential returns the user when username and password match.
// ok is false both for an unknown username and for a wrong password; the
// caller cannot tell which.  err is reserved for storage failures.
func (r *UserRepo) VerifyCredential(ctx context.Context, username, password string) (u model.User, ok bool, err error) {
	username = strings.TrimSpace(username)
	err = r.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM users WHERE username = ? LIMIT 1",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		// Spend a comparison anyway so both failure paths cost about the same.
		utils.VerifyPassword(r.dummyHash(), password)
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("select user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, false, nil
	}
	if utils.NeedsRehash(u.PasswordHash, r.cost) {
		// Best effort: a failed upgrade leaves the old digest usable.
		if hash, err := utils.HashPassword(password, r.cost); err == nil {
			if _, err := r.db.ExecContext(ctx,
				"UPDATE users SET password_hash = ? WHERE id = ?", hash, u.ID); err == nil {
				u.PasswordHash = hash
			}
		}
	}
	return u, true, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM users WHERE id = ? LIMIT 1",
		id).Scan(&u.ID, &u.Username, &u.PasswordHash)
	return u, err
}

func (r *UserRepo) dummyHash() string {
	r.dummyOnce.Do(func() {
		r.dummy, _ = utils.HashPassword("no such user", r.cost)
	})
	return r.dummy
}
