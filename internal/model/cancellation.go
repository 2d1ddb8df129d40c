package model

import "time"

// Cancellation is an append-only audit row written whenever a booking
// (confirmed or waiting) is removed through cancellation. Swaps and
// finalization do not write cancellations.
type Cancellation struct {
	ID         uint64    // cancellations.id
	UserID     uint64    // cancellations.user_id
	ScheduleID uint64    // cancellations.schedule_id
	CreatedAt  time.Time // cancellations.created_at
}
