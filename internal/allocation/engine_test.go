package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// recordingNotifier captures sends for assertions; fail makes every
// delivery error out.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	data []map[string]string
	fail bool
}

func (n *recordingNotifier) Send(_ context.Context, contact, _ string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, contact)
	n.data = append(n.data, data)
	return nil
}

func intp(n int) *int      { return &n }
func idp(n uint64) *uint64 { return &n }

// twoSeatFixture builds a schedule with two seats and enough riders to
// fill and overflow it.
func twoSeatFixture() (*memStore, *Engine) {
	store := newMemStore()
	store.addRoute(1, "dorms", "campus", "07:30")
	store.addSchedule(10, 1, intp(2), nil)
	for id := uint64(1); id <= 5; id++ {
		store.addUser(id, "rider", 10, 0)
	}
	return store, NewEngine(store, nil, "campus")
}

func TestPlaceConfirmsWhileSeatsRemain(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	b1, err := eng.Place(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, model.BookingBooked, b1.Status)

	b2, err := eng.Place(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, model.BookingBooked, b2.Status)

	// Third rider lands on the waiting list; the ticket is still spent.
	b3, err := eng.Place(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, model.BookingWaiting, b3.Status)

	for _, uid := range []uint64{1, 2, 3} {
		tk := store.ticket(uid)
		assert.Equal(t, 9, tk.Remaining, "user %d", uid)
		assert.Equal(t, 1, tk.InHand, "user %d", uid)
	}
}

func TestPlacePreconditions(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	_, err := eng.Place(ctx, 1, 999)
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	store.state.schedules[10].Enabled = false
	_, err = eng.Place(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrScheduleClosed)
	store.state.schedules[10].Enabled = true

	_, err = eng.Place(ctx, 42, 10)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = eng.Place(ctx, 1, 10)
	require.NoError(t, err)
	_, err = eng.Place(ctx, 1, 10)
	assert.ErrorIs(t, err, ErrDuplicateBooking)

	// Failed attempts must not leak ticket state.
	tk := store.ticket(1)
	assert.Equal(t, 9, tk.Remaining)
	assert.Equal(t, 1, tk.InHand)
}

func TestPlaceTicketLimits(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	store.addUser(20, "broke", 0, 0)
	_, err := eng.Place(ctx, 20, 10)
	assert.ErrorIs(t, err, ErrNoTicketsRemaining)

	store.addUser(21, "maxed", 5, MaxTicketsInHand)
	_, err = eng.Place(ctx, 21, 10)
	assert.ErrorIs(t, err, ErrMaxTicketsInHand)

	// Counters untouched after rejections.
	assert.Equal(t, 0, store.ticket(20).Remaining)
	assert.Equal(t, MaxTicketsInHand, store.ticket(21).InHand)
}

func TestCancelPromotesOldestWaiting(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	b1, _ := eng.Place(ctx, 1, 10)
	_, err := eng.Place(ctx, 2, 10)
	require.NoError(t, err)
	w1, _ := eng.Place(ctx, 3, 10) // waiting, first in line
	w2, _ := eng.Place(ctx, 4, 10) // waiting, second
	require.Equal(t, model.BookingWaiting, w1.Status)
	require.Equal(t, model.BookingWaiting, w2.Status)

	removed, err := eng.Cancel(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, removed.ID)

	// Oldest waiting rider takes the seat, marked paid on promotion.
	promoted := store.booking(w1.ID)
	require.NotNil(t, promoted)
	assert.Equal(t, model.BookingBooked, promoted.Status)
	assert.True(t, promoted.PayStatus)

	// Second waiter stays put.
	assert.Equal(t, model.BookingWaiting, store.booking(w2.ID).Status)

	// Canceller got the ticket back and an audit row.
	tk := store.ticket(1)
	assert.Equal(t, 10, tk.Remaining)
	assert.Equal(t, 0, tk.InHand)
	require.Len(t, store.state.cancellations, 1)
	assert.Equal(t, uint64(1), store.state.cancellations[0].userID)
}

func TestCancelWaitingDoesNotPromote(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	eng.Place(ctx, 1, 10)
	eng.Place(ctx, 2, 10)
	w1, _ := eng.Place(ctx, 3, 10)
	w2, _ := eng.Place(ctx, 4, 10)

	_, err := eng.Cancel(ctx, w1.ID)
	require.NoError(t, err)

	// No seat was freed, so the other waiter must still be waiting.
	assert.Equal(t, model.BookingWaiting, store.booking(w2.ID).Status)
	assert.Nil(t, store.booking(w1.ID))
}

func TestCancelRejectsMissingAndUsed(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	_, err := eng.Cancel(ctx, 777)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	b, _ := eng.Place(ctx, 1, 10)
	store.state.bookings[b.ID].Status = model.BookingUsed
	_, err = eng.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestPlaceCancelRoundTripRestoresTicket(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	before := store.ticket(1)
	b, err := eng.Place(ctx, 1, 10)
	require.NoError(t, err)
	_, err = eng.Cancel(ctx, b.ID)
	require.NoError(t, err)

	after := store.ticket(1)
	assert.Equal(t, before.Remaining, after.Remaining)
	assert.Equal(t, before.InHand, after.InHand)
}

func TestSwapReplacesSeatWithoutAudit(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	b1, _ := eng.Place(ctx, 1, 10)
	eng.Place(ctx, 2, 10)
	w1, _ := eng.Place(ctx, 3, 10)

	promoted, err := eng.Swap(ctx, b1.ID, w1.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, w1.ID, promoted.ID)
	assert.Equal(t, model.BookingBooked, promoted.Status)
	assert.True(t, promoted.PayStatus)

	// Displaced rider: booking gone, ticket refunded, no audit row.
	assert.Nil(t, store.booking(b1.ID))
	assert.Equal(t, 10, store.ticket(1).Remaining)
	assert.Equal(t, 0, store.ticket(1).InHand)
	assert.Empty(t, store.state.cancellations)

	// Seat count unchanged: still two seated.
	var seated int
	for _, b := range store.state.bookings {
		if b.Status == model.BookingBooked {
			seated++
		}
	}
	assert.Equal(t, 2, seated)
}

func TestSwapValidation(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	store.addRoute(2, "dorms", "airport", "09:00")
	store.addSchedule(11, 2, intp(2), nil)

	b1, _ := eng.Place(ctx, 1, 10)
	b2, _ := eng.Place(ctx, 2, 10)
	w1, _ := eng.Place(ctx, 3, 10)
	other, _ := eng.Place(ctx, 4, 11)

	// Roles reversed, not-a-waiting target, missing ids.
	_, err := eng.Swap(ctx, w1.ID, b1.ID, 10)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	_, err = eng.Swap(ctx, b1.ID, b2.ID, 10)
	assert.ErrorIs(t, err, ErrBookingNotFound)
	_, err = eng.Swap(ctx, 999, w1.ID, 10)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	// Confirmed booking from another schedule.
	_, err = eng.Swap(ctx, other.ID, w1.ID, 10)
	assert.ErrorIs(t, err, ErrScheduleMismatch)
}

func TestReconcilePromotesIntoFreedSeats(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	eng.Place(ctx, 1, 10)
	eng.Place(ctx, 2, 10)
	w1, _ := eng.Place(ctx, 3, 10)
	w2, _ := eng.Place(ctx, 4, 10)
	w3, _ := eng.Place(ctx, 5, 10)

	res, err := eng.Reconcile(ctx, 10, 4)
	require.NoError(t, err)
	require.Len(t, res.Promoted, 2)
	assert.Equal(t, w1.ID, res.Promoted[0].ID)
	assert.Equal(t, w2.ID, res.Promoted[1].ID)
	assert.Zero(t, res.Overflow)

	assert.Equal(t, model.BookingBooked, store.booking(w1.ID).Status)
	assert.Equal(t, model.BookingBooked, store.booking(w2.ID).Status)
	assert.Equal(t, model.BookingWaiting, store.booking(w3.ID).Status)
}

func TestReconcileDecreaseNeverEvicts(t *testing.T) {
	store, eng := twoSeatFixture()
	ctx := context.Background()

	b1, _ := eng.Place(ctx, 1, 10)
	b2, _ := eng.Place(ctx, 2, 10)
	w1, _ := eng.Place(ctx, 3, 10)

	res, err := eng.Reconcile(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Overflow)
	assert.Empty(t, res.Promoted)

	// Both confirmed riders keep their seats; the waiter stays waiting.
	assert.Equal(t, model.BookingBooked, store.booking(b1.ID).Status)
	assert.Equal(t, model.BookingBooked, store.booking(b2.ID).Status)
	assert.Equal(t, model.BookingWaiting, store.booking(w1.ID).Status)

	_, err = eng.Reconcile(ctx, 999, 5)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestFinalizeConfirm(t *testing.T) {
	store := newMemStore()
	store.addRoute(1, "dorms", "Campus", "07:30")
	store.addBus(5, 2)
	store.addSchedule(10, 1, nil, idp(5))
	for id := uint64(1); id <= 3; id++ {
		store.addUser(id, "rider", 10, 0)
	}
	notifier := &recordingNotifier{}
	eng := NewEngine(store, notifier, "campus")
	ctx := context.Background()

	b1, _ := eng.Place(ctx, 1, 10)
	b2, _ := eng.Place(ctx, 2, 10)
	w1, _ := eng.Place(ctx, 3, 10)
	require.Equal(t, model.BookingWaiting, w1.Status)

	used, err := eng.Finalize(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, used, 2)

	// Seated riders: trip taken, ticket permanently spent.
	for _, id := range []uint64{b1.ID, b2.ID} {
		assert.Equal(t, model.BookingUsed, store.booking(id).Status)
	}
	for _, uid := range []uint64{1, 2} {
		tk := store.ticket(uid)
		assert.Equal(t, 9, tk.Remaining, "user %d", uid)
		assert.Equal(t, 0, tk.InHand, "user %d", uid)
		assert.True(t, store.state.users[uid].OnCampus, "user %d", uid)
	}

	// Waiting rider: fully refunded, booking removed.
	assert.Nil(t, store.booking(w1.ID))
	tk := store.ticket(3)
	assert.Equal(t, 10, tk.Remaining)
	assert.Equal(t, 0, tk.InHand)

	// Schedule and bus closed.
	assert.False(t, store.state.schedules[10].Enabled)
	assert.False(t, store.state.buses[5].Enabled)

	// One notification per seated rider with trip details attached.
	require.Len(t, notifier.sent, 2)
	assert.Equal(t, "2026-03-02", notifier.data[0]["date"])
	assert.Equal(t, "dorms", notifier.data[0]["origin"])

	// Re-running is a no-op beyond the disable flags.
	again, err := eng.Finalize(ctx, 10, true)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, 9, store.ticket(1).Remaining)
	assert.Len(t, notifier.sent, 2)
}

func TestFinalizeRejectReopens(t *testing.T) {
	store := newMemStore()
	store.addRoute(1, "dorms", "campus", "07:30")
	store.addBus(5, 2)
	store.addSchedule(10, 1, nil, idp(5))
	store.state.schedules[10].Enabled = false
	store.state.buses[5].Enabled = false
	eng := NewEngine(store, nil, "campus")

	_, err := eng.Finalize(context.Background(), 10, false)
	require.NoError(t, err)
	assert.True(t, store.state.schedules[10].Enabled)
	assert.True(t, store.state.buses[5].Enabled)
}

func TestFinalizeNotifierFailureIsNonFatal(t *testing.T) {
	store := newMemStore()
	store.addRoute(1, "dorms", "campus", "07:30")
	store.addSchedule(10, 1, intp(2), nil)
	store.addUser(1, "rider", 10, 0)
	notifier := &recordingNotifier{fail: true}
	eng := NewEngine(store, notifier, "campus")
	ctx := context.Background()

	b, _ := eng.Place(ctx, 1, 10)
	used, err := eng.Finalize(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, model.BookingUsed, store.booking(b.ID).Status)
}

func TestFinalizeOffCampusDestination(t *testing.T) {
	store := newMemStore()
	store.addRoute(1, "campus", "airport", "18:00")
	store.addSchedule(10, 1, intp(2), nil)
	store.addUser(1, "rider", 10, 0)
	store.state.users[1].OnCampus = true
	eng := NewEngine(store, nil, "campus")
	ctx := context.Background()

	eng.Place(ctx, 1, 10)
	_, err := eng.Finalize(ctx, 10, true)
	require.NoError(t, err)
	assert.False(t, store.state.users[1].OnCampus)
}

// Six riders race for two seats. The store fake deliberately lacks its
// own locking and pauses before committing, so only the engine's
// per-schedule mutex keeps the read-decide-write sequences from
// interleaving; without it some commits would be lost and the seat
// count would drift.
func TestConcurrentPlacementsSerializePerSchedule(t *testing.T) {
	const riders = 6
	store := newMemStore()
	store.addRoute(1, "dorms", "campus", "07:30")
	store.addSchedule(10, 1, intp(2), nil)
	for i := uint64(1); i <= riders; i++ {
		store.addUser(i, fmt.Sprintf("rider%d@example.com", i), 10, 0)
	}
	racy := &racyStore{inner: store}
	eng := NewEngine(racy, nil, "campus")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := uint64(1); i <= riders; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, err := eng.Place(ctx, userID, 10)
			assert.NoError(t, err, "user %d", userID)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, racy.maxInflight.Load(), int32(1),
		"transactions for one schedule overlapped in the store")

	booked, waiting := 0, 0
	for _, b := range store.state.bookings {
		switch b.Status {
		case model.BookingBooked:
			booked++
		case model.BookingWaiting:
			waiting++
		}
	}
	assert.Equal(t, 2, booked)
	assert.Equal(t, riders-2, waiting)
	for i := uint64(1); i <= riders; i++ {
		tk := store.ticket(i)
		assert.Equal(t, 9, tk.Remaining, "user %d", i)
		assert.Equal(t, 1, tk.InHand, "user %d", i)
	}
}
