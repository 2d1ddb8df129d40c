package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vtransit/shuttle-booking/internal/model"
)

// RouteRepo provides persistence for route master data. Routes are
// referenced by schedules; location names live here purely for display
// and notification text.
type RouteRepo struct{ db *sql.DB }

// NewRouteRepo returns a RouteRepo bound to the given database.
func NewRouteRepo(db *sql.DB) *RouteRepo { return &RouteRepo{db: db} }

// Create inserts a route and returns its id. Names are stored lower
// case so lookups and destination comparisons are case-insensitive.
func (r *RouteRepo) Create(ctx context.Context, origin, destination, departureTime string) (uint64, error) {
	origin = strings.ToLower(strings.TrimSpace(origin))
	destination = strings.ToLower(strings.TrimSpace(destination))
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO routes (origin, destination, departure_time) VALUES (?,?,?)",
		origin, destination, departureTime)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a route by id. Returns sql.ErrNoRows when absent.
func (r *RouteRepo) GetByID(ctx context.Context, id uint64) (model.Route, error) {
	var rt model.Route
	err := r.db.QueryRowContext(ctx,
		"SELECT id,origin,destination,departure_time,created_at FROM routes WHERE id=? LIMIT 1",
		id).Scan(&rt.ID, &rt.Origin, &rt.Destination, &rt.DepartureTime, &rt.CreatedAt)
	return rt, err
}

// GetByIDTx fetches a route inside an existing transaction; a missing
// row yields (nil, nil).
func (r *RouteRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Route, error) {
	var rt model.Route
	err := tx.QueryRowContext(ctx,
		"SELECT id,origin,destination,departure_time,created_at FROM routes WHERE id=? LIMIT 1",
		id).Scan(&rt.ID, &rt.Origin, &rt.Destination, &rt.DepartureTime, &rt.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// List returns all routes ordered by origin then departure time.
func (r *RouteRepo) List(ctx context.Context) ([]model.Route, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,origin,destination,departure_time,created_at FROM routes ORDER BY origin, departure_time")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	routes := make([]model.Route, 0)
	for rows.Next() {
		var rt model.Route
		if err := rows.Scan(&rt.ID, &rt.Origin, &rt.Destination, &rt.DepartureTime, &rt.CreatedAt); err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return routes, nil
}
