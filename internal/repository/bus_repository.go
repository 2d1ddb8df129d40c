package repository

import (
	"context"
	"database/sql"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// BusRepo provides persistence for buses. A bus assigned to a schedule
// supplies that schedule's effective seat capacity.
type BusRepo struct{ db *sql.DB }

// NewBusRepo returns a BusRepo bound to the given database.
func NewBusRepo(db *sql.DB) *BusRepo { return &BusRepo{db: db} }

const busColumns = "id,model,plate_number,num_of_seat,driver_name,driver_contact,enable,created_at,updated_at"

func scanBus(scan func(dest ...interface{}) error) (model.Bus, error) {
	var b model.Bus
	var contact sql.NullString
	err := scan(&b.ID, &b.Model, &b.PlateNumber, &b.NumOfSeat, &b.DriverName,
		&contact, &b.Enabled, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Bus{}, err
	}
	if contact.Valid {
		c := contact.String
		b.DriverContact = &c
	}
	return b, nil
}

// Create inserts a bus and returns its id. A duplicate plate number
// reports ErrPlateExists.
func (r *BusRepo) Create(ctx context.Context, b *model.Bus) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO buses (model, plate_number, num_of_seat, driver_name, driver_contact) VALUES (?,?,?,?,?)",
		b.Model, b.PlateNumber, b.NumOfSeat, b.DriverName, b.DriverContact)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrPlateExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a bus by id. Returns sql.ErrNoRows when absent.
func (r *BusRepo) GetByID(ctx context.Context, id uint64) (model.Bus, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+busColumns+" FROM buses WHERE id=? LIMIT 1", id)
	return scanBus(row.Scan)
}

// GetByIDTx fetches a bus inside an existing transaction; a missing row
// yields (nil, nil).
func (r *BusRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Bus, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+busColumns+" FROM buses WHERE id=? LIMIT 1", id)
	b, err := scanBus(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns all buses ordered by plate number.
func (r *BusRepo) List(ctx context.Context) ([]model.Bus, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+busColumns+" FROM buses ORDER BY plate_number")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	buses := make([]model.Bus, 0)
	for rows.Next() {
		b, err := scanBus(rows.Scan)
		if err != nil {
			return nil, err
		}
		buses = append(buses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buses, nil
}

// Update rewrites the mutable bus fields. Returns sql.ErrNoRows when
// the bus does not exist and ErrPlateExists on a plate collision.
func (r *BusRepo) Update(ctx context.Context, b *model.Bus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE buses SET model=?, plate_number=?, num_of_seat=?, driver_name=?, driver_contact=? WHERE id=?",
		b.Model, b.PlateNumber, b.NumOfSeat, b.DriverName, b.DriverContact, b.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrPlateExists
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

// Delete removes a bus. Returns sql.ErrNoRows when absent.
func (r *BusRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM buses WHERE id=?", id)
	if err != nil {
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

// SetEnabledTx flips the bus availability flag inside an existing
// transaction. Finalization disables the bus together with its
// schedule.
func (r *BusRepo) SetEnabledTx(ctx context.Context, tx *sql.Tx, id uint64, enabled bool) error {
	_, err := tx.ExecContext(ctx, "UPDATE buses SET enable=? WHERE id=?", enabled, id)
	return err
}
