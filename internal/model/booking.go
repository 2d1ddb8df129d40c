package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking.
type BookingStatus string

const (
	// BookingBooked means the user holds a confirmed seat.
	BookingBooked BookingStatus = "BOOKED"
	// BookingWaiting means the user is queued for a seat, FIFO by
	// creation time with the auto-increment id as tie-break.
	BookingWaiting BookingStatus = "WAITING"
	// BookingUsed is the historical state set when a schedule is
	// finalized; the ticket has been consumed.
	BookingUsed BookingStatus = "USED"
)

// Booking records a user's claim against a schedule, either a confirmed
// seat or a place in the waiting queue. A unique key on
// (user_id, schedule_id) enforces at most one booking per user per
// schedule. Cancelled bookings are deleted, leaving a Cancellation row.
//
// Fields:
//
//	ID         – primary key identifier.
//	UserID     – user who made the booking.
//	ScheduleID – schedule being booked.
//	Status     – BOOKED, WAITING or USED.
//	PayStatus  – whether the fare is settled; set true on promotion.
//	CreatedAt  – creation timestamp; part of the FIFO ordering key.
//	UpdatedAt  – last update timestamp.
type Booking struct {
	ID         uint64        // bookings.id
	UserID     uint64        // bookings.user_id
	ScheduleID uint64        // bookings.schedule_id
	Status     BookingStatus // bookings.status
	PayStatus  bool          // bookings.pay_status
	CreatedAt  time.Time     // bookings.created_at
	UpdatedAt  time.Time     // bookings.updated_at
}
