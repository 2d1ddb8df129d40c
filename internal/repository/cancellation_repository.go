package repository

import (
	"context"
	"database/sql"
	"time"
)

// CancellationRepo records the cancellation audit trail. Rows are only
// written through the allocation engine's transactions; swaps bypass
// this table on purpose.
type CancellationRepo struct{ db *sql.DB }

// NewCancellationRepo returns a CancellationRepo bound to the given
// database.
func NewCancellationRepo(db *sql.DB) *CancellationRepo { return &CancellationRepo{db: db} }

// InsertTx records a cancellation inside an existing transaction.
func (r *CancellationRepo) InsertTx(ctx context.Context, tx *sql.Tx, userID, scheduleID uint64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO cancellations (user_id, schedule_id) VALUES (?,?)",
		userID, scheduleID)
	return err
}

// CancellationRecord is a cancellation joined with the rider's name for
// admin reports.
type CancellationRecord struct {
	ID         uint64    `json:"id"`
	UserID     uint64    `json:"user_id"`
	Username   string    `json:"username"`
	ScheduleID uint64    `json:"schedule_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListBySchedule returns the cancellations recorded against a schedule,
// newest first.
func (r *CancellationRepo) ListBySchedule(ctx context.Context, scheduleID uint64) ([]CancellationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, u.username, c.schedule_id, c.created_at
FROM cancellations c
JOIN users u ON u.id = c.user_id
WHERE c.schedule_id=?
ORDER BY c.created_at DESC, c.id DESC`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]CancellationRecord, 0)
	for rows.Next() {
		var rec CancellationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.ScheduleID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
