package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtransit/shuttle-booking/internal/model"
)

func TestEffectiveCapacityResolution(t *testing.T) {
	store := newMemStore()
	store.addRoute(1, "dorms", "campus", "07:30")
	store.addBus(5, 40)
	store.addSchedule(10, 1, intp(12), idp(5))  // bus wins over override
	store.addSchedule(11, 1, intp(12), nil)     // override
	store.addSchedule(12, 1, nil, nil)          // system default
	store.addSchedule(13, 1, intp(12), idp(99)) // bus gone, fall back to override
	store.addSchedule(14, 1, intp(0), nil)      // zero override means unset
	ctx := context.Background()

	err := store.RunInTx(ctx, func(tx Tx) error {
		for _, tc := range []struct {
			scheduleID uint64
			want       int
		}{
			{10, 40},
			{11, 12},
			{12, DefaultSeatCount},
			{13, 12},
			{14, DefaultSeatCount},
		} {
			s, err := tx.ScheduleByID(ctx, tc.scheduleID)
			require.NoError(t, err)
			got, err := EffectiveCapacity(ctx, tx, s)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "schedule %d", tc.scheduleID)
		}
		return nil
	})
	require.NoError(t, err)
}

// A stored seat count of zero must behave like no override at all:
// Capacity reports the default and placement confirms riders into it, so
// every capacity consumer sees the same number and the confirmed count
// can never exceed what placement was told.
func TestZeroSeatOverrideUsesDefaultEverywhere(t *testing.T) {
	store := newMemStore()
	store.addRoute(1, "dorms", "campus", "07:30")
	store.addSchedule(10, 1, intp(0), nil)
	store.addUser(1, "rider", 10, 0)
	eng := NewEngine(store, nil, "campus")
	ctx := context.Background()

	capacity, err := eng.Capacity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, DefaultSeatCount, capacity)

	b, err := eng.Place(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, model.BookingBooked, b.Status, "zero override must not waitlist the first rider")

	// Reconciling against the same resolved capacity is a no-op, not an
	// oversell.
	res, err := eng.Reconcile(ctx, 10, capacity)
	require.NoError(t, err)
	assert.Empty(t, res.Promoted)
	assert.Zero(t, res.Overflow)
}

func TestCapacityMissingSchedule(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(store, nil, "campus")

	_, err := eng.Capacity(context.Background(), 404)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}
