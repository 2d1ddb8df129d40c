package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings. The Tx methods are
// the store surface the allocation engine runs on; the plain methods
// serve read endpoints with joined display data.
//
// The waiting queue order everywhere is `created_at ASC, id ASC`: the
// auto-increment id is the monotonic tie-break when two bookings land in
// the same timestamp.
type BookingRepo struct{ db *sql.DB }

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = "id,user_id,schedule_id,status,pay_status,created_at,updated_at"

func scanBooking(scan func(dest ...interface{}) error) (model.Booking, error) {
	var b model.Booking
	var status string
	err := scan(&b.ID, &b.UserID, &b.ScheduleID, &status, &b.PayStatus, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}

// GetByIDTx fetches a booking inside an existing transaction; a missing
// row yields (nil, nil).
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id=? LIMIT 1", id)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ActiveByUserAndScheduleTx returns the user's BOOKED or WAITING booking
// for the schedule, or (nil, nil) when none exists.
func (r *BookingRepo) ActiveByUserAndScheduleTx(ctx context.Context, tx *sql.Tx, userID, scheduleID uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id=? AND schedule_id=? AND status IN ('BOOKED','WAITING') LIMIT 1",
		userID, scheduleID)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountSeatedTx counts the bookings occupying a seat (BOOKED and USED)
// for a schedule.
func (r *BookingRepo) CountSeatedTx(ctx context.Context, tx *sql.Tx, scheduleID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE schedule_id=? AND status IN ('BOOKED','USED')",
		scheduleID).Scan(&n)
	return n, err
}

// ListByScheduleStatusTx lists a schedule's bookings in the given status
// in FIFO order inside an existing transaction.
func (r *BookingRepo) ListByScheduleStatusTx(ctx context.Context, tx *sql.Tx, scheduleID uint64, status model.BookingStatus) ([]model.Booking, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE schedule_id=? AND status=? ORDER BY created_at ASC, id ASC",
		scheduleID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// FirstWaitingTx returns the head of the schedule's waiting queue,
// locked for update, or (nil, nil) when the queue is empty.
func (r *BookingRepo) FirstWaitingTx(ctx context.Context, tx *sql.Tx, scheduleID uint64) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE schedule_id=? AND status='WAITING' ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE",
		scheduleID)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertTx stores a new booking inside an existing transaction and
// populates its id and timestamps from the database row.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO bookings (user_id, schedule_id, status, pay_status) VALUES (?,?,?,?)",
		b.UserID, b.ScheduleID, string(b.Status), b.PayStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return tx.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM bookings WHERE id=?", b.ID).
		Scan(&b.CreatedAt, &b.UpdatedAt)
}

// UpdateStatusTx rewrites a booking's status and pay flag inside an
// existing transaction.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.BookingStatus, payStatus bool) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE bookings SET status=?, pay_status=? WHERE id=?",
		string(status), payStatus, id)
	return err
}

// DeleteTx removes a booking inside an existing transaction.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM bookings WHERE id=?", id)
	return err
}

// BookingDetail carries a booking joined with rider and trip data for
// list endpoints.
type BookingDetail struct {
	ID            uint64    `json:"id"`
	Status        string    `json:"status"`
	PayStatus     bool      `json:"pay_status"`
	UserID        uint64    `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	ScheduleID    uint64    `json:"schedule_id"`
	Date          string    `json:"date"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime string    `json:"departure_time"`
	CreatedAt     time.Time `json:"created_at"`
}

const detailQuery = `SELECT b.id, b.status, b.pay_status,
       u.id, u.username, u.email,
       s.id, s.date, rt.origin, rt.destination, rt.departure_time,
       b.created_at
FROM bookings b
JOIN users u ON u.id = b.user_id
JOIN schedules s ON s.id = b.schedule_id
JOIN routes rt ON rt.id = s.route_id`

func (r *BookingRepo) queryDetails(ctx context.Context, q string, args ...interface{}) ([]BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		var date time.Time
		if err := rows.Scan(&d.ID, &d.Status, &d.PayStatus,
			&d.UserID, &d.Username, &d.Email,
			&d.ScheduleID, &date, &d.Origin, &d.Destination, &d.DepartureTime,
			&d.CreatedAt); err != nil {
			return nil, err
		}
		d.Date = date.UTC().Format("2006-01-02")
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// ListDetailBySchedule returns joined details for every booking on the
// schedule, FIFO within status.
func (r *BookingRepo) ListDetailBySchedule(ctx context.Context, scheduleID uint64) ([]BookingDetail, error) {
	return r.queryDetails(ctx,
		detailQuery+" WHERE b.schedule_id=? ORDER BY b.status, b.created_at ASC, b.id ASC",
		scheduleID)
}

// ListDetailByUser returns joined details for a user's bookings in the
// given status, newest first for history and oldest first for active
// bookings.
func (r *BookingRepo) ListDetailByUser(ctx context.Context, userID uint64, status model.BookingStatus) ([]BookingDetail, error) {
	order := " ORDER BY b.created_at ASC, b.id ASC"
	if status == model.BookingUsed {
		order = " ORDER BY b.created_at DESC, b.id DESC"
	}
	return r.queryDetails(ctx,
		detailQuery+" WHERE b.user_id=? AND b.status=?"+order,
		userID, string(status))
}

// GetDetailByID returns the joined detail row for one booking. Returns
// sql.ErrNoRows when absent.
func (r *BookingRepo) GetDetailByID(ctx context.Context, id uint64) (BookingDetail, error) {
	details, err := r.queryDetails(ctx, detailQuery+" WHERE b.id=?", id)
	if err != nil {
		return BookingDetail{}, err
	}
	if len(details) == 0 {
		return BookingDetail{}, sql.ErrNoRows
	}
	return details[0], nil
}
