package allocation

import (
	"context"
	"log"
	"sync"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// Engine executes every mutation of booking state. All operations on the
// same schedule are serialized by a per-schedule mutex held across the
// whole read-decide-write transaction, so a Place can never interleave
// with a promotion in a way that oversells the bus.
type Engine struct {
	store    Store
	notifier Notifier // may be nil; finalization then skips notification
	campus   string   // destination name that flips users' on_campus flag

	mu    sync.Mutex
	slots map[uint64]*sync.Mutex
}

// NewEngine constructs an Engine. notifier may be nil when no outbound
// notification transport is configured; campus is the location name
// compared against route destinations at finalization.
func NewEngine(store Store, notifier Notifier, campus string) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		campus:   campus,
		slots:    make(map[uint64]*sync.Mutex),
	}
}

// slotLock returns the mutex guarding a schedule, creating it on first
// use. Locks are never removed; the map grows with the number of
// schedules ever touched, which is bounded and small.
func (e *Engine) slotLock(scheduleID uint64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.slots[scheduleID]
	if !ok {
		l = &sync.Mutex{}
		e.slots[scheduleID] = l
	}
	return l
}

// Place books a seat on a schedule for a user. Preconditions are checked
// in order, first failure wins: schedule exists, schedule open, no
// existing active booking for the pair, ticket budget allows. On success
// one ticket is reserved and the booking is created CONFIRMED when a
// seat is free, otherwise WAITING at the tail of the queue.
func (e *Engine) Place(ctx context.Context, userID, scheduleID uint64) (*model.Booking, error) {
	l := e.slotLock(scheduleID)
	l.Lock()
	defer l.Unlock()

	var booking *model.Booking
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		s, err := tx.ScheduleByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if s == nil {
			return ErrScheduleNotFound
		}
		if !s.Enabled {
			return ErrScheduleClosed
		}
		existing, err := tx.ActiveBookingByUserAndSchedule(ctx, userID, scheduleID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateBooking
		}
		t, err := tx.TicketByUser(ctx, userID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrUserNotFound
		}
		if err := CheckTicket(t); err != nil {
			return err
		}
		if err := reserveTicket(ctx, tx, t); err != nil {
			return err
		}
		room, err := hasRoom(ctx, tx, s)
		if err != nil {
			return err
		}
		status := model.BookingWaiting
		if room {
			status = model.BookingBooked
		}
		b := &model.Booking{
			UserID:     userID,
			ScheduleID: scheduleID,
			Status:     status,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Cancel removes a confirmed or waiting booking, writes a cancellation
// record and refunds the ticket. When a confirmed booking is removed the
// head of the waiting queue, if any, is promoted into the freed seat.
// Cancelling a waiting booking never triggers promotion.
func (e *Engine) Cancel(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	// Read the booking first to learn which schedule to lock. The
	// schedule id of a booking never changes, so the lock key is stable;
	// the booking itself is re-read under the lock.
	var peek *model.Booking
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		peek = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if peek == nil || peek.Status == model.BookingUsed {
		return nil, ErrBookingNotFound
	}

	l := e.slotLock(peek.ScheduleID)
	l.Lock()
	defer l.Unlock()

	var removed *model.Booking
	err = e.store.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.BookingByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b == nil || b.Status == model.BookingUsed {
			return ErrBookingNotFound
		}
		if err := tx.InsertCancellation(ctx, b.UserID, b.ScheduleID); err != nil {
			return err
		}
		if err := releaseTicket(ctx, tx, b.UserID); err != nil {
			return err
		}
		if err := tx.DeleteBooking(ctx, b.ID); err != nil {
			return err
		}
		if b.Status == model.BookingBooked {
			if _, err := promote(ctx, tx, b.ScheduleID); err != nil {
				return err
			}
		}
		removed = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// promote converts the head of the schedule's waiting queue to a
// confirmed booking. The promoted user's ticket is untouched: it was
// reserved when they placed. Returns nil when the queue is empty.
func promote(ctx context.Context, tx Tx, scheduleID uint64) (*model.Booking, error) {
	head, err := tx.FirstWaiting(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, nil
	}
	if err := tx.UpdateBookingStatus(ctx, head.ID, model.BookingBooked, true); err != nil {
		return nil, err
	}
	head.Status = model.BookingBooked
	head.PayStatus = true
	return head, nil
}

// Swap is an operator-directed 1:1 substitution: the confirmed booking
// is deleted (without a cancellation record) and its ticket refunded,
// and the named waiting booking takes the seat with pay_status set. Both
// bookings must belong to the given schedule. No queue promotion runs;
// seat count is unchanged.
func (e *Engine) Swap(ctx context.Context, bookedID, waitingID, scheduleID uint64) (*model.Booking, error) {
	l := e.slotLock(scheduleID)
	l.Lock()
	defer l.Unlock()

	var promoted *model.Booking
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		booked, err := tx.BookingByID(ctx, bookedID)
		if err != nil {
			return err
		}
		if booked == nil || booked.Status != model.BookingBooked {
			return ErrBookingNotFound
		}
		waiting, err := tx.BookingByID(ctx, waitingID)
		if err != nil {
			return err
		}
		if waiting == nil || waiting.Status != model.BookingWaiting {
			return ErrBookingNotFound
		}
		if booked.ScheduleID != scheduleID || waiting.ScheduleID != scheduleID {
			return ErrScheduleMismatch
		}
		if err := tx.DeleteBooking(ctx, booked.ID); err != nil {
			return err
		}
		if err := releaseTicket(ctx, tx, booked.UserID); err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, waiting.ID, model.BookingBooked, true); err != nil {
			return err
		}
		waiting.Status = model.BookingBooked
		waiting.PayStatus = true
		promoted = waiting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// ReconcileResult reports the outcome of a capacity change.
type ReconcileResult struct {
	// Promoted lists the waiting bookings converted to confirmed, in
	// queue order.
	Promoted []model.Booking
	// Overflow is the number of confirmed seats above the new capacity
	// when the capacity shrank below the confirmed count. Confirmed
	// riders are never evicted; the overflow must be resolved by an
	// operator.
	Overflow int
}

// Reconcile recomputes the confirmed/waiting split after a schedule's
// capacity changes (bus assignment or manual seat edit). Freed seats are
// filled from the waiting queue in FIFO order; a capacity decrease below
// the confirmed count is tolerated and reported, never auto-resolved.
func (e *Engine) Reconcile(ctx context.Context, scheduleID uint64, newCapacity int) (ReconcileResult, error) {
	l := e.slotLock(scheduleID)
	l.Lock()
	defer l.Unlock()

	var res ReconcileResult
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		s, err := tx.ScheduleByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if s == nil {
			return ErrScheduleNotFound
		}
		seated, err := tx.CountSeated(ctx, scheduleID)
		if err != nil {
			return err
		}
		if newCapacity < seated {
			res.Overflow = seated - newCapacity
			log.Printf("allocation: schedule %d over capacity after change: %d confirmed, %d seats; manual resolution required",
				scheduleID, seated, newCapacity)
			return nil
		}
		for freed := newCapacity - seated; freed > 0; freed-- {
			b, err := promote(ctx, tx, scheduleID)
			if err != nil {
				return err
			}
			if b == nil {
				break
			}
			res.Promoted = append(res.Promoted, *b)
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return res, nil
}

// ScheduleBookings groups a schedule's bookings by state for listing.
type ScheduleBookings struct {
	Booked  []model.Booking
	Waiting []model.Booking
	Used    []model.Booking
}

// ListBySchedule returns the schedule's bookings grouped by state, each
// group in FIFO creation order.
func (e *Engine) ListBySchedule(ctx context.Context, scheduleID uint64) (*ScheduleBookings, error) {
	var out ScheduleBookings
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		s, err := tx.ScheduleByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if s == nil {
			return ErrScheduleNotFound
		}
		if out.Booked, err = tx.BookingsBySchedule(ctx, scheduleID, model.BookingBooked); err != nil {
			return err
		}
		if out.Waiting, err = tx.BookingsBySchedule(ctx, scheduleID, model.BookingWaiting); err != nil {
			return err
		}
		if out.Used, err = tx.BookingsBySchedule(ctx, scheduleID, model.BookingUsed); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
