package repository

import (
	"context"
	"database/sql"
	"time"
)

// SetBeforeUpdate installs a hook that runs inside Book between the seat
// read and the conditional update.
func SetBeforeUpdate(r *BookingRepo, f func(ctx context.Context, tx *sql.Tx) error) {
	r.beforeUpdate = f
}

// SetClock replaces the booking timestamp source.
func SetClock(r *BookingRepo, now func() time.Time) { r.now = now }
