package allocation

import (
	"context"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// DefaultSeatCount is the capacity assumed for schedules with no bus
// assigned and no stored seat override.
const DefaultSeatCount = 24

// EffectiveCapacity resolves the seat capacity of a schedule: the
// assigned bus's seat count wins, then the schedule's stored override,
// then the system default. A stored override of zero (or less) means
// "unset" and falls through to the default, the same as nil; capacity
// can only be closed off by disabling the schedule, never by zeroing
// seats. This is the single resolution everywhere — handlers must not
// re-derive it.
func EffectiveCapacity(ctx context.Context, tx Tx, s *model.Schedule) (int, error) {
	if s.BusID != nil {
		bus, err := tx.BusByID(ctx, *s.BusID)
		if err != nil {
			return 0, err
		}
		if bus != nil && bus.NumOfSeat > 0 {
			return bus.NumOfSeat, nil
		}
	}
	if s.AvailableSeat != nil && *s.AvailableSeat > 0 {
		return *s.AvailableSeat, nil
	}
	return DefaultSeatCount, nil
}

// Capacity resolves a schedule's effective capacity in its own
// transaction, for callers outside an engine operation (read endpoints,
// capacity edits).
func (e *Engine) Capacity(ctx context.Context, scheduleID uint64) (int, error) {
	var capacity int
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		s, err := tx.ScheduleByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if s == nil {
			return ErrScheduleNotFound
		}
		capacity, err = EffectiveCapacity(ctx, tx, s)
		return err
	})
	if err != nil {
		return 0, err
	}
	return capacity, nil
}

// hasRoom reports whether the schedule still has a free confirmed seat.
func hasRoom(ctx context.Context, tx Tx, s *model.Schedule) (bool, error) {
	capacity, err := EffectiveCapacity(ctx, tx, s)
	if err != nil {
		return false, err
	}
	seated, err := tx.CountSeated(ctx, s.ID)
	if err != nil {
		return false, err
	}
	return seated < capacity, nil
}
