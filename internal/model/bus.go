package model

import "time"

// Bus describes a vehicle that can be assigned to a schedule. When
// assigned, its NumOfSeat becomes the schedule's effective capacity.
//
// Fields:
//
//	ID            – primary key identifier.
//	Model         – vehicle model name.
//	PlateNumber   – unique registration plate.
//	NumOfSeat     – passenger capacity.
//	DriverName    – name of the assigned driver.
//	DriverContact – optional driver phone number.
//	Enabled       – false while the bus is out on a finalized trip.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Bus struct {
	ID            uint64    // buses.id
	Model         string    // buses.model
	PlateNumber   string    // buses.plate_number
	NumOfSeat     int       // buses.num_of_seat
	DriverName    string    // buses.driver_name
	DriverContact *string   // buses.driver_contact (nullable)
	Enabled       bool      // buses.enable
	CreatedAt     time.Time // buses.created_at
	UpdatedAt     time.Time // buses.updated_at
}
