package allocation

import (
	"context"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// MaxTicketsInHand caps how many active bookings (confirmed or waiting) a
// user may hold at once.
const MaxTicketsInHand = 2

// CheckTicket reports whether the ticket allows creating one more
// booking. It returns ErrNoTicketsRemaining when the budget is spent and
// ErrMaxTicketsInHand when the in-hand cap is reached; nil otherwise.
// Callers must re-check inside the same transaction that reserves.
func CheckTicket(t *model.Ticket) error {
	if t.Remaining <= 0 {
		return ErrNoTicketsRemaining
	}
	if t.InHand >= MaxTicketsInHand {
		return ErrMaxTicketsInHand
	}
	return nil
}

// reserveTicket spends one remaining ticket and raises the in-hand count.
// The caller must have validated the ticket with CheckTicket within the
// same transaction.
func reserveTicket(ctx context.Context, tx Tx, t *model.Ticket) error {
	return tx.UpdateTicket(ctx, t.UserID, t.Remaining-1, t.InHand+1)
}

// releaseTicket refunds one ticket on booking removal: remaining goes up,
// in-hand goes down. The in-hand counter clamps at zero; that floor is
// deliberate, not an error.
func releaseTicket(ctx context.Context, tx Tx, userID uint64) error {
	t, err := tx.TicketByUser(ctx, userID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrUserNotFound
	}
	inHand := t.InHand - 1
	if inHand < 0 {
		inHand = 0
	}
	return tx.UpdateTicket(ctx, userID, t.Remaining+1, inHand)
}

// consumeTicket marks a confirmed seat as used at finalization: in-hand
// goes down but remaining is not restored, so the ticket is permanently
// spent. Clamps at zero like releaseTicket.
func consumeTicket(ctx context.Context, tx Tx, userID uint64) error {
	t, err := tx.TicketByUser(ctx, userID)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrUserNotFound
	}
	inHand := t.InHand - 1
	if inHand < 0 {
		inHand = 0
	}
	return tx.UpdateTicket(ctx, userID, t.Remaining, inHand)
}
