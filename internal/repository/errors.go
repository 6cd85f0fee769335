// Package repository is the booking store: it owns the persisted entities and
// is the only authority on the booking invariant (a seat is booked iff exactly
// one booking row references it).  Every multi-step mutation runs in a single
// transaction that rolls back in full on any error.
//
// The sentinel errors below let higher layers tell the expected failure
// outcomes apart from storage failures.  Anything not matching a sentinel
// is a storage error and is wrapped with context.
package repository

import "errors"

var (
	// ErrUsernameExists is returned by UserRepo.Create for a taken username.
	ErrUsernameExists = errors.New("username exists")

	// ErrShowingNotFound is returned when a showing id does not exist.
	ErrShowingNotFound = errors.New("screening not found")

	// ErrSeatNotFound is returned when a seat lookup yields no rows.
	ErrSeatNotFound = errors.New("seat not found")

	// ErrSeatAlreadyBooked is returned when the seat was already booked
	// when the booking transaction read it.
	ErrSeatAlreadyBooked = errors.New("seat already booked")

	// ErrBookingRace is returned when the conditional update of the seat
	// matched no row: another transaction booked it between read and
	// write.  Callers should re-query availability and retry.
	ErrBookingRace = errors.New("failed to book (concurrency)")

	// ErrBookingNotFound is returned when a booking does not exist or is
	// owned by a different user.  The two cases are deliberately merged.
	ErrBookingNotFound = errors.New("booking not found or not yours")

	// ErrNegativePrice rejects showings priced below zero.
	ErrNegativePrice = errors.New("price must not be negative")
)
