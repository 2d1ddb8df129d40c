package model

import "time"

// Schedule is a single dated departure of a route. Bookings and the
// waiting list hang off a schedule; once an admin confirms it the row is
// disabled and no further bookings are accepted.
//
// Fields:
//
//	ID            – primary key identifier.
//	RouteID       – route being driven on this date.
//	Date          – departure date (stored as DATE, midnight UTC).
//	AvailableSeat – seat count override; nil means the system default
//	                applies unless a bus is assigned.
//	Enabled       – false once the schedule has been finalized.
//	BusID         – assigned bus, if any. A bus assignment overrides the
//	                seat count with the bus capacity.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Schedule struct {
	ID            uint64    // schedules.id
	RouteID       uint64    // schedules.route_id
	Date          time.Time // schedules.date
	AvailableSeat *int      // schedules.available_seat (nullable)
	Enabled       bool      // schedules.enable
	BusID         *uint64   // schedules.bus_id (nullable)
	CreatedAt     time.Time // schedules.created_at
	UpdatedAt     time.Time // schedules.updated_at
}
