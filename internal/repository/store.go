package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/vtransit/shuttle-booking/internal/allocation"
	"github.com/vtransit/shuttle-booking/internal/model"
)

// maxTxRetries bounds how many times RunInTx replays a transaction that
// lost a deadlock or lock-wait race before giving up with ErrConflict.
const maxTxRetries = 3

// Store glues the per-table repositories into the transactional store
// the allocation engine runs on. All engine state changes flow through
// RunInTx so counter, booking and schedule mutations commit atomically.
type Store struct {
	db            *sql.DB
	users         *UserRepo
	tickets       *TicketRepo
	routes        *RouteRepo
	buses         *BusRepo
	schedules     *ScheduleRepo
	bookings      *BookingRepo
	cancellations *CancellationRepo
}

// NewStore builds a Store over the given repositories. Every repo must
// share the same *sql.DB.
func NewStore(db *sql.DB, users *UserRepo, tickets *TicketRepo, routes *RouteRepo,
	buses *BusRepo, schedules *ScheduleRepo, bookings *BookingRepo,
	cancellations *CancellationRepo) *Store {
	return &Store{
		db:            db,
		users:         users,
		tickets:       tickets,
		routes:        routes,
		buses:         buses,
		schedules:     schedules,
		bookings:      bookings,
		cancellations: cancellations,
	}
}

// RunInTx executes fn inside a database transaction, replaying it a
// bounded number of times when MySQL kills it as a deadlock victim.
// Retry-exhausted races surface as allocation.ErrConflict; connection
// and deadline failures surface as allocation.ErrStoreUnavailable.
func (s *Store) RunInTx(ctx context.Context, fn func(tx allocation.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return translateStoreErr(err)
		}
		lastErr = err
		log.Printf("store: transaction retry %d/%d: %v", attempt+1, maxTxRetries, err)
		select {
		case <-ctx.Done():
			return allocation.ErrStoreUnavailable
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		}
	}
	log.Printf("store: transaction gave up after %d attempts: %v", maxTxRetries, lastErr)
	return allocation.ErrConflict
}

func (s *Store) runOnce(ctx context.Context, fn func(tx allocation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if err := fn(&storeTx{store: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// isRetryable reports whether err is a MySQL deadlock (1213) or
// lock-wait timeout (1205), the two races worth replaying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "1213") || strings.Contains(msg, "1205")
}

// translateStoreErr maps infrastructure failures to the engine's typed
// errors and lets domain errors pass through untouched.
func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return allocation.ErrStoreUnavailable
	default:
		return err
	}
}

// storeTx adapts one *sql.Tx to the engine's transaction surface by
// delegating to the repositories' Tx methods.
type storeTx struct {
	store *Store
	tx    *sql.Tx
}

func (t *storeTx) ScheduleByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	return t.store.schedules.GetByIDTx(ctx, t.tx, id)
}

func (t *storeTx) SetScheduleEnabled(ctx context.Context, id uint64, enabled bool) error {
	return t.store.schedules.SetEnabledTx(ctx, t.tx, id, enabled)
}

func (t *storeTx) RouteByID(ctx context.Context, id uint64) (*model.Route, error) {
	return t.store.routes.GetByIDTx(ctx, t.tx, id)
}

func (t *storeTx) BusByID(ctx context.Context, id uint64) (*model.Bus, error) {
	return t.store.buses.GetByIDTx(ctx, t.tx, id)
}

func (t *storeTx) SetBusEnabled(ctx context.Context, id uint64, enabled bool) error {
	return t.store.buses.SetEnabledTx(ctx, t.tx, id, enabled)
}

func (t *storeTx) UserByID(ctx context.Context, id uint64) (*model.User, error) {
	return t.store.users.GetByIDTx(ctx, t.tx, id)
}

func (t *storeTx) SetUserOnCampus(ctx context.Context, id uint64, onCampus bool) error {
	return t.store.users.SetOnCampusTx(ctx, t.tx, id, onCampus)
}

func (t *storeTx) TicketByUser(ctx context.Context, userID uint64) (*model.Ticket, error) {
	return t.store.tickets.GetByUserTx(ctx, t.tx, userID)
}

func (t *storeTx) UpdateTicket(ctx context.Context, userID uint64, remaining, inHand int) error {
	return t.store.tickets.UpdateTx(ctx, t.tx, userID, remaining, inHand)
}

func (t *storeTx) BookingByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return t.store.bookings.GetByIDTx(ctx, t.tx, id)
}

func (t *storeTx) ActiveBookingByUserAndSchedule(ctx context.Context, userID, scheduleID uint64) (*model.Booking, error) {
	return t.store.bookings.ActiveByUserAndScheduleTx(ctx, t.tx, userID, scheduleID)
}

func (t *storeTx) CountSeated(ctx context.Context, scheduleID uint64) (int, error) {
	return t.store.bookings.CountSeatedTx(ctx, t.tx, scheduleID)
}

func (t *storeTx) BookingsBySchedule(ctx context.Context, scheduleID uint64, status model.BookingStatus) ([]model.Booking, error) {
	return t.store.bookings.ListByScheduleStatusTx(ctx, t.tx, scheduleID, status)
}

func (t *storeTx) FirstWaiting(ctx context.Context, scheduleID uint64) (*model.Booking, error) {
	return t.store.bookings.FirstWaitingTx(ctx, t.tx, scheduleID)
}

func (t *storeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.store.bookings.InsertTx(ctx, t.tx, b)
}

func (t *storeTx) UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus, payStatus bool) error {
	return t.store.bookings.UpdateStatusTx(ctx, t.tx, id, status, payStatus)
}

func (t *storeTx) DeleteBooking(ctx context.Context, id uint64) error {
	return t.store.bookings.DeleteTx(ctx, t.tx, id)
}

func (t *storeTx) InsertCancellation(ctx context.Context, userID, scheduleID uint64) error {
	return t.store.cancellations.InsertTx(ctx, t.tx, userID, scheduleID)
}
