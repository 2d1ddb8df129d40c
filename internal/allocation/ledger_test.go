package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtransit/shuttle-booking/internal/model"
)

func TestCheckTicket(t *testing.T) {
	cases := []struct {
		name      string
		remaining int
		inHand    int
		want      error
	}{
		{"fresh", 36, 0, nil},
		{"one left", 1, 1, nil},
		{"exhausted", 0, 0, ErrNoTicketsRemaining},
		{"negative remaining", -1, 0, ErrNoTicketsRemaining},
		{"at in-hand cap", 5, MaxTicketsInHand, ErrMaxTicketsInHand},
		{"over in-hand cap", 5, MaxTicketsInHand + 1, ErrMaxTicketsInHand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTicket(&model.Ticket{UserID: 1, Remaining: tc.remaining, InHand: tc.inHand})
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestReleaseTicketClampsAtZero(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "rider", 3, 0) // in-hand already zero

	err := store.RunInTx(context.Background(), func(tx Tx) error {
		return releaseTicket(context.Background(), tx, 1)
	})
	require.NoError(t, err)

	tk := store.ticket(1)
	assert.Equal(t, 4, tk.Remaining)
	assert.Equal(t, 0, tk.InHand, "in-hand never goes negative")
}

func TestConsumeTicketSpendsPermanently(t *testing.T) {
	store := newMemStore()
	store.addUser(1, "rider", 5, 2)

	err := store.RunInTx(context.Background(), func(tx Tx) error {
		return consumeTicket(context.Background(), tx, 1)
	})
	require.NoError(t, err)

	tk := store.ticket(1)
	assert.Equal(t, 5, tk.Remaining, "remaining not restored on consume")
	assert.Equal(t, 1, tk.InHand)
}

func TestLedgerMissingUser(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	err := store.RunInTx(ctx, func(tx Tx) error { return releaseTicket(ctx, tx, 99) })
	assert.ErrorIs(t, err, ErrUserNotFound)
	err = store.RunInTx(ctx, func(tx Tx) error { return consumeTicket(ctx, tx, 99) })
	assert.ErrorIs(t, err, ErrUserNotFound)
}
