// Package allocation implements the seat-allocation and waitlist-promotion
// engine. It owns the rules for confirmed-vs-waiting placement, ticket
// accounting, swap and cancel semantics, and the reconciliation that moves
// waiting users into freed seats. Persistence is abstracted behind the
// Store interface so the same rules run against MySQL in production and an
// in-memory store in tests.
package allocation

import "errors"

// Sentinel errors returned by the engine. Handlers translate these into
// HTTP responses with errors.Is; anything else is treated as an internal
// error.
var (
	// ErrScheduleNotFound is returned when the referenced schedule does
	// not exist.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrBookingNotFound is returned when a booking id does not resolve
	// to a confirmed or waiting booking. Historical (USED) bookings are
	// immutable and also report not found.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrUserNotFound is returned when the booking user or their ticket
	// row cannot be located.
	ErrUserNotFound = errors.New("user not found")

	// ErrScheduleClosed is returned when booking against a schedule that
	// has been finalized or otherwise disabled.
	ErrScheduleClosed = errors.New("schedule is closed")

	// ErrDuplicateBooking is returned when the user already holds a
	// confirmed or waiting booking for the schedule.
	ErrDuplicateBooking = errors.New("booking for this schedule already exists")

	// ErrNoTicketsRemaining is returned when the user's ticket budget is
	// exhausted.
	ErrNoTicketsRemaining = errors.New("no remaining tickets")

	// ErrMaxTicketsInHand is returned when the user already holds the
	// maximum number of active bookings.
	ErrMaxTicketsInHand = errors.New("maximum tickets in hand reached")

	// ErrScheduleMismatch is returned by Swap when either booking does
	// not belong to the schedule named in the request.
	ErrScheduleMismatch = errors.New("bookings do not belong to the given schedule")

	// ErrConflict is returned after the store's bounded retry on
	// concurrent-mutation conflicts is exhausted. Safe to retry.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrStoreUnavailable is returned for transient store failures such
	// as timeouts. Safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
