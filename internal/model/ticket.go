package model

import "time"

// Ticket tracks a user's seat entitlement. Exactly one row exists per
// user; it is created together with the user and mutated only inside the
// same transaction as the booking write it accounts for.
//
// Remaining is the user's budget of future bookings and InHand counts the
// bookings currently held (confirmed or waiting). Both counters clamp at
// zero instead of going negative.
type Ticket struct {
	UserID    uint64    // tickets.user_id (primary key)
	Remaining int       // tickets.remain_ticket
	InHand    int       // tickets.ticket_inhand
	UpdatedAt time.Time // tickets.updated_at
}
