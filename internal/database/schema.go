package database

import (
	"context"
	"database/sql"
	"fmt"
)

// The schema mirrors the five booking entities.  Both spellings enforce the
// same constraints: referential integrity (showing -> event, seat -> showing,
// booking -> user/seat), unique usernames, unique seat labels per showing and
// at most one booking row per seat.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE CHECK (username <> ''),
		password_hash TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS movies (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		title    TEXT NOT NULL,
		is_movie INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS screenings (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		movie_id   INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
		start_time DATETIME NOT NULL,
		price      TEXT NOT NULL CHECK (CAST(price AS REAL) >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS seats (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		screening_id INTEGER NOT NULL REFERENCES screenings(id) ON DELETE CASCADE,
		seat_label   TEXT NOT NULL,
		is_booked    INTEGER NOT NULL DEFAULT 0,
		UNIQUE (screening_id, seat_label)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id   INTEGER NOT NULL REFERENCES users(id),
		seat_id   INTEGER NOT NULL UNIQUE REFERENCES seats(id),
		booked_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_screenings_movie ON screenings(movie_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id, booked_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(191) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		UNIQUE KEY uq_users_username (username),
		CHECK (username <> '')
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS movies (
		id       BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title    VARCHAR(255) NOT NULL,
		is_movie TINYINT(1) NOT NULL DEFAULT 1
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS screenings (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		movie_id   BIGINT UNSIGNED NOT NULL,
		start_time DATETIME NOT NULL,
		price      DECIMAL(10,2) NOT NULL,
		KEY idx_screenings_movie (movie_id),
		CONSTRAINT fk_screenings_movie FOREIGN KEY (movie_id) REFERENCES movies(id) ON DELETE CASCADE,
		CHECK (price >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS seats (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		screening_id BIGINT UNSIGNED NOT NULL,
		seat_label   VARCHAR(16) NOT NULL,
		is_booked    TINYINT(1) NOT NULL DEFAULT 0,
		UNIQUE KEY uq_seats_label (screening_id, seat_label),
		CONSTRAINT fk_seats_screening FOREIGN KEY (screening_id) REFERENCES screenings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id   BIGINT UNSIGNED NOT NULL,
		seat_id   BIGINT UNSIGNED NOT NULL,
		booked_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_bookings_seat (seat_id),
		KEY idx_bookings_user (user_id, booked_at),
		CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT fk_bookings_seat FOREIGN KEY (seat_id) REFERENCES seats(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  It is idempotent and safe to run on
// every startup.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	var stmts []string
	switch d {
	case SQLite:
		stmts = sqliteSchema
	case MySQL:
		stmts = mysqlSchema
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", d)
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
