package allocation

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// Notifier delivers an outbound notification to a single contact.
// Delivery failures are non-fatal: the engine logs them and finalization
// stands regardless of delivery outcome.
type Notifier interface {
	Send(ctx context.Context, contact, templateID string, data map[string]string) error
}

// TemplateScheduleConfirmed identifies the trip-confirmation message sent
// to every rider whose seat was used.
const TemplateScheduleConfirmed = "schedule-confirmed"

// notifyWorkers bounds the concurrent notification sends during
// finalization.
const notifyWorkers = 4

// notification is a pending send collected during the finalize
// transaction and dispatched after commit.
type notification struct {
	contact string
	data    map[string]string
}

// Finalize closes out a schedule after departure. With confirm=false the
// schedule (and its bus) is simply re-opened. With confirm=true, as one
// transaction: every confirmed booking becomes USED and its ticket is
// consumed, the rider's on-campus flag is set from the route
// destination, every still-waiting booking is refunded in full and
// removed (the schedule is closing, nobody is promoted), and the
// schedule and its bus are disabled. Notifications go out after commit.
//
// Re-running Finalize(id, true) is safe: no confirmed or waiting
// bookings remain, so only the disable flags are re-written.
func (e *Engine) Finalize(ctx context.Context, scheduleID uint64, confirm bool) ([]model.Booking, error) {
	l := e.slotLock(scheduleID)
	l.Lock()
	defer l.Unlock()

	if !confirm {
		err := e.store.RunInTx(ctx, func(tx Tx) error {
			s, err := tx.ScheduleByID(ctx, scheduleID)
			if err != nil {
				return err
			}
			if s == nil {
				return ErrScheduleNotFound
			}
			if err := tx.SetScheduleEnabled(ctx, scheduleID, true); err != nil {
				return err
			}
			if s.BusID != nil {
				return tx.SetBusEnabled(ctx, *s.BusID, true)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	var used []model.Booking
	var pending []notification
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		used = nil
		pending = nil
		s, err := tx.ScheduleByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if s == nil {
			return ErrScheduleNotFound
		}
		route, err := tx.RouteByID(ctx, s.RouteID)
		if err != nil {
			return err
		}
		atCampus := route != nil && strings.EqualFold(route.Destination, e.campus)

		booked, err := tx.BookingsBySchedule(ctx, scheduleID, model.BookingBooked)
		if err != nil {
			return err
		}
		for _, b := range booked {
			if err := tx.UpdateBookingStatus(ctx, b.ID, model.BookingUsed, b.PayStatus); err != nil {
				return err
			}
			if err := consumeTicket(ctx, tx, b.UserID); err != nil {
				return err
			}
			if err := tx.SetUserOnCampus(ctx, b.UserID, atCampus); err != nil {
				return err
			}
			b.Status = model.BookingUsed
			used = append(used, b)

			u, err := tx.UserByID(ctx, b.UserID)
			if err != nil {
				return err
			}
			if u != nil && route != nil {
				pending = append(pending, notification{
					contact: u.Email,
					data: map[string]string{
						"username":       u.Username,
						"date":           s.Date.Format("2006-01-02"),
						"origin":         route.Origin,
						"destination":    route.Destination,
						"departure_time": route.DepartureTime,
					},
				})
			}
		}

		waiting, err := tx.BookingsBySchedule(ctx, scheduleID, model.BookingWaiting)
		if err != nil {
			return err
		}
		for _, w := range waiting {
			if err := releaseTicket(ctx, tx, w.UserID); err != nil {
				return err
			}
			if err := tx.DeleteBooking(ctx, w.ID); err != nil {
				return err
			}
		}

		if err := tx.SetScheduleEnabled(ctx, scheduleID, false); err != nil {
			return err
		}
		if s.BusID != nil {
			return tx.SetBusEnabled(ctx, *s.BusID, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.dispatch(ctx, pending)
	return used, nil
}

// dispatch fans the pending notifications out over a fixed worker pool.
// Each failure is logged per contact and never propagated.
func (e *Engine) dispatch(ctx context.Context, pending []notification) {
	if e.notifier == nil || len(pending) == 0 {
		return
	}
	jobs := make(chan notification)
	var wg sync.WaitGroup
	workers := notifyWorkers
	if len(pending) < workers {
		workers = len(pending)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				if err := e.notifier.Send(ctx, n.contact, TemplateScheduleConfirmed, n.data); err != nil {
					log.Printf("allocation: notify %s failed: %v", n.contact, err)
				}
			}
		}()
	}
	for _, n := range pending {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
}
