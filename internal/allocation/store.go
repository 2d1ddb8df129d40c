package allocation

import (
	"context"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// Store provides transactional access to the booking state. RunInTx
// executes fn inside a single transaction: if fn returns an error the
// transaction is rolled back and the error returned, otherwise it is
// committed. Implementations map transient failures to
// ErrStoreUnavailable and retry-exhausted conflicts to ErrConflict.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of state operations the engine performs inside a
// transaction. Lookup methods return (nil, nil) when the row does not
// exist; the engine decides which typed error that amounts to.
type Tx interface {
	ScheduleByID(ctx context.Context, id uint64) (*model.Schedule, error)
	SetScheduleEnabled(ctx context.Context, id uint64, enabled bool) error

	RouteByID(ctx context.Context, id uint64) (*model.Route, error)

	BusByID(ctx context.Context, id uint64) (*model.Bus, error)
	SetBusEnabled(ctx context.Context, id uint64, enabled bool) error

	UserByID(ctx context.Context, id uint64) (*model.User, error)
	SetUserOnCampus(ctx context.Context, id uint64, onCampus bool) error

	TicketByUser(ctx context.Context, userID uint64) (*model.Ticket, error)
	UpdateTicket(ctx context.Context, userID uint64, remaining, inHand int) error

	BookingByID(ctx context.Context, id uint64) (*model.Booking, error)
	// ActiveBookingByUserAndSchedule returns the user's BOOKED or WAITING
	// booking for the schedule, if any.
	ActiveBookingByUserAndSchedule(ctx context.Context, userID, scheduleID uint64) (*model.Booking, error)
	// CountSeated counts bookings occupying a seat (BOOKED plus USED)
	// for the schedule.
	CountSeated(ctx context.Context, scheduleID uint64) (int, error)
	// BookingsBySchedule lists bookings in the given status ordered by
	// created_at then id ascending.
	BookingsBySchedule(ctx context.Context, scheduleID uint64, status model.BookingStatus) ([]model.Booking, error)
	// FirstWaiting returns the head of the schedule's waiting queue
	// (oldest created_at, lowest id), or nil when the queue is empty.
	FirstWaiting(ctx context.Context, scheduleID uint64) (*model.Booking, error)
	// InsertBooking stores a new booking and populates its ID and
	// CreatedAt.
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, payStatus bool) error
	DeleteBooking(ctx context.Context, id uint64) error

	InsertCancellation(ctx context.Context, userID, scheduleID uint64) error
}
