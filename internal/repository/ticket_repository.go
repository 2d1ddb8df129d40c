package repository

import (
	"context"
	"database/sql"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// TicketRepo provides access to the per-user ticket counters. The
// counters are only ever written through the allocation engine's
// transactions; the plain read is for profile endpoints.
type TicketRepo struct{ db *sql.DB }

// NewTicketRepo returns a TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// GetByUser fetches a user's ticket counters. Returns sql.ErrNoRows
// when the user has no ticket row.
func (r *TicketRepo) GetByUser(ctx context.Context, userID uint64) (model.Ticket, error) {
	var t model.Ticket
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id,remain_ticket,ticket_inhand,updated_at FROM tickets WHERE user_id=? LIMIT 1",
		userID).Scan(&t.UserID, &t.Remaining, &t.InHand, &t.UpdatedAt)
	return t, err
}

// GetByUserTx fetches the ticket inside an existing transaction, locking
// the row for update so concurrent counter mutations serialize. A
// missing row yields (nil, nil).
func (r *TicketRepo) GetByUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.Ticket, error) {
	var t model.Ticket
	err := tx.QueryRowContext(ctx,
		"SELECT user_id,remain_ticket,ticket_inhand,updated_at FROM tickets WHERE user_id=? FOR UPDATE",
		userID).Scan(&t.UserID, &t.Remaining, &t.InHand, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTx writes both counters inside an existing transaction.
func (r *TicketRepo) UpdateTx(ctx context.Context, tx *sql.Tx, userID uint64, remaining, inHand int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE tickets SET remain_ticket=?, ticket_inhand=? WHERE user_id=?",
		remaining, inHand, userID)
	return err
}
