package model

import "time"

// Route is master data describing a recurring trip between two
// locations. Schedules reference routes by id; the location names are
// kept here only for display and notification text.
type Route struct {
	ID            uint64    // routes.id
	Origin        string    // routes.origin
	Destination   string    // routes.destination
	DepartureTime string    // routes.departure_time (HH:MM, 24h)
	CreatedAt     time.Time // routes.created_at
}
