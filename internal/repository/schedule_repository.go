package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// ScheduleRepo provides persistence for schedules. Capacity and
// enable-flag mutations that belong to allocation flows go through the
// Tx methods; plain methods serve the admin read/write endpoints.
type ScheduleRepo struct{ db *sql.DB }

// NewScheduleRepo returns a ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need transactions
// spanning multiple repositories.
func (r *ScheduleRepo) DB() *sql.DB { return r.db }

const scheduleColumns = "id,route_id,date,available_seat,enable,bus_id,created_at,updated_at"

func scanSchedule(scan func(dest ...interface{}) error) (model.Schedule, error) {
	var s model.Schedule
	var seats sql.NullInt64
	var busID sql.NullInt64
	err := scan(&s.ID, &s.RouteID, &s.Date, &seats, &s.Enabled, &busID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Schedule{}, err
	}
	if seats.Valid {
		n := int(seats.Int64)
		s.AvailableSeat = &n
	}
	if busID.Valid {
		id := uint64(busID.Int64)
		s.BusID = &id
	}
	return s, nil
}

// Create inserts a schedule. A duplicate (route_id, date) reports
// ErrScheduleExists; the unique key also covers the bus column so the
// same route+date cannot be scheduled twice even with different buses.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) (uint64, error) {
	var existing uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM schedules WHERE route_id=? AND date=? LIMIT 1",
		s.RouteID, s.Date.UTC().Format("2006-01-02")).Scan(&existing)
	if err == nil {
		return 0, ErrScheduleExists
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO schedules (route_id, date, available_seat, bus_id) VALUES (?,?,?,?)",
		s.RouteID, s.Date.UTC().Format("2006-01-02"), nullableInt(s.AvailableSeat), nullableID(s.BusID))
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrScheduleExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a schedule by id. Returns sql.ErrNoRows when absent.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (model.Schedule, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id=? LIMIT 1", id)
	return scanSchedule(row.Scan)
}

// GetByIDTx fetches a schedule inside an existing transaction, locking
// the row so capacity decisions serialize. A missing row yields
// (nil, nil).
func (r *ScheduleRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Schedule, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id=? FOR UPDATE", id)
	s, err := scanSchedule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns schedules ordered by date descending with limit/offset
// pagination, along with the total row count for page math.
func (r *ScheduleRepo) List(ctx context.Context, limit, offset int) ([]model.Schedule, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules ORDER BY date DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	schedules := make([]model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return schedules, total, nil
}

// Update rewrites the schedule's capacity-relevant fields. Returns
// sql.ErrNoRows when the schedule does not exist.
func (r *ScheduleRepo) Update(ctx context.Context, s *model.Schedule) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE schedules SET route_id=?, date=?, available_seat=?, bus_id=?, enable=? WHERE id=?",
		s.RouteID, s.Date.UTC().Format("2006-01-02"), nullableInt(s.AvailableSeat), nullableID(s.BusID), s.Enabled, s.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrScheduleExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEnabledTx flips the schedule's enable flag inside an existing
// transaction.
func (r *ScheduleRepo) SetEnabledTx(ctx context.Context, tx *sql.Tx, id uint64, enabled bool) error {
	_, err := tx.ExecContext(ctx, "UPDATE schedules SET enable=? WHERE id=?", enabled, id)
	return err
}

// ListByDate returns the schedules departing on the given date.
func (r *ScheduleRepo) ListByDate(ctx context.Context, date time.Time) ([]model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE date=? ORDER BY id",
		date.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	schedules := make([]model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schedules, nil
}

func nullableInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableID(p *uint64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
