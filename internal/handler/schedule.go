package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vtransit/shuttle-booking/internal/allocation"
	"github.com/vtransit/shuttle-booking/internal/model"
	"github.com/vtransit/shuttle-booking/internal/repository"
)

// ScheduleHandler exposes schedule administration and browsing. Capacity
// edits and finalization delegate to the allocation engine so the
// waiting queue reacts inside the same locking discipline as bookings.
type ScheduleHandler struct {
	Engine        *allocation.Engine
	Schedules     *repository.ScheduleRepo
	Routes        *repository.RouteRepo
	Buses         *repository.BusRepo
	Bookings      *repository.BookingRepo
	Cancellations *repository.CancellationRepo
}

func NewScheduleHandler(engine *allocation.Engine, schedules *repository.ScheduleRepo,
	routes *repository.RouteRepo, buses *repository.BusRepo,
	bookings *repository.BookingRepo, cancellations *repository.CancellationRepo) *ScheduleHandler {
	if engine == nil || schedules == nil || routes == nil || buses == nil || bookings == nil || cancellations == nil {
		panic("nil dependency passed to NewScheduleHandler")
	}
	return &ScheduleHandler{
		Engine:        engine,
		Schedules:     schedules,
		Routes:        routes,
		Buses:         buses,
		Bookings:      bookings,
		Cancellations: cancellations,
	}
}

type scheduleReq struct {
	RouteID       uint64  `json:"route_id"`
	Date          string  `json:"date"` // YYYY-MM-DD
	AvailableSeat *int    `json:"available_seat"`
	BusID         *uint64 `json:"bus_id"`
	Enable        *bool   `json:"enable"`
}

type scheduleResp struct {
	ID            uint64  `json:"id"`
	RouteID       uint64  `json:"route_id"`
	Date          string  `json:"date"`
	AvailableSeat *int    `json:"available_seat"`
	BusID         *uint64 `json:"bus_id"`
	Enabled       bool    `json:"enabled"`
	Capacity      int     `json:"capacity"`
	Seated        int     `json:"seated"`
	Waiting       int     `json:"waiting"`
}

func (h *ScheduleHandler) scheduleResponse(ctx context.Context, s *model.Schedule) (scheduleResp, error) {
	grouped, err := h.Engine.ListBySchedule(ctx, s.ID)
	if err != nil {
		return scheduleResp{}, err
	}
	// Capacity comes from the engine so this endpoint can never disagree
	// with the placement decisions.
	capacity, err := h.Engine.Capacity(ctx, s.ID)
	if err != nil {
		return scheduleResp{}, err
	}
	return scheduleResp{
		ID:            s.ID,
		RouteID:       s.RouteID,
		Date:          s.Date.Format("2006-01-02"),
		AvailableSeat: s.AvailableSeat,
		BusID:         s.BusID,
		Enabled:       s.Enabled,
		Capacity:      capacity,
		Seated:        len(grouped.Booked) + len(grouped.Used),
		Waiting:       len(grouped.Waiting),
	}, nil
}

// Create registers a dated departure for a route. Admin only.
func (h *ScheduleHandler) Create(c echo.Context) error {
	var req scheduleReq
	if err := c.Bind(&req); err != nil || req.RouteID == 0 || req.Date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "route_id/date required"})
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Routes.GetByID(ctx, req.RouteID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if req.BusID != nil {
		if _, err := h.Buses.GetByID(ctx, *req.BusID); err != nil {
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "bus not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}

	s := &model.Schedule{
		RouteID:       req.RouteID,
		Date:          date,
		AvailableSeat: req.AvailableSeat,
		BusID:         req.BusID,
	}
	id, err := h.Schedules.Create(ctx, s)
	if err != nil {
		if err == repository.ErrScheduleExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "schedule already exists for route and date"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create schedule failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Get returns one schedule with its live seat counts.
func (h *ScheduleHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Schedules.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	resp, err := h.scheduleResponse(ctx, &s)
	if err != nil {
		return allocationError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// List returns schedules newest first with limit/offset pagination.
func (h *ScheduleHandler) List(c echo.Context) error {
	limit := intQuery(c, "limit", 20, 100)
	offset := intQuery(c, "offset", 0, 1<<30)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	schedules, total, err := h.Schedules.List(ctx, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	items := make([]scheduleResp, 0, len(schedules))
	for i := range schedules {
		resp, err := h.scheduleResponse(ctx, &schedules[i])
		if err != nil {
			return allocationError(c, err)
		}
		items = append(items, resp)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Update edits a schedule's route, date, bus or seat override, then
// reconciles the waiting queue against the new capacity. A capacity
// decrease below the confirmed count is accepted; the overflow is
// reported for the operator to resolve, nobody is evicted.
func (h *ScheduleHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	var req scheduleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s, err := h.Schedules.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if req.RouteID != 0 {
		if _, err := h.Routes.GetByID(ctx, req.RouteID); err != nil {
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		s.RouteID = req.RouteID
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		s.Date = date
	}
	if req.BusID != nil {
		bus, err := h.Buses.GetByID(ctx, *req.BusID)
		if err != nil {
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "bus not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		// A bus too small for the riders already confirmed is refused
		// outright. Direct seat edits may still undershoot; those report
		// overflow instead.
		grouped, err := h.Engine.ListBySchedule(ctx, id)
		if err != nil {
			return allocationError(c, err)
		}
		if seated := len(grouped.Booked) + len(grouped.Used); bus.NumOfSeat < seated {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":  "bus has fewer seats than confirmed bookings",
				"seats":  bus.NumOfSeat,
				"seated": seated,
			})
		}
		s.BusID = req.BusID
	}
	if req.AvailableSeat != nil {
		if *req.AvailableSeat < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "available_seat must be >= 0"})
		}
		s.AvailableSeat = req.AvailableSeat
	}
	if req.Enable != nil {
		s.Enabled = *req.Enable
	}

	if err := h.Schedules.Update(ctx, &s); err != nil {
		switch err {
		case repository.ErrScheduleExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "schedule already exists for route and date"})
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update schedule failed"})
		}
	}

	newCapacity, err := h.Engine.Capacity(ctx, id)
	if err != nil {
		return allocationError(c, err)
	}
	res, err := h.Engine.Reconcile(ctx, id, newCapacity)
	if err != nil {
		return allocationError(c, err)
	}
	resp, err := h.scheduleResponse(ctx, &s)
	if err != nil {
		return allocationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"schedule": resp,
		"promoted": len(res.Promoted),
		"overflow": res.Overflow,
	})
}

type confirmReq struct {
	Confirm bool `json:"confirm"`
}

// Confirm finalizes a departed schedule. confirm=true marks every seated
// rider's trip as taken, refunds the waiting queue and closes the
// schedule and its bus; confirm=false re-opens both. Admin only.
func (h *ScheduleHandler) Confirm(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	// Finalization touches every booking on the schedule and fans out
	// notifications; give it a wider deadline than point operations.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	used, err := h.Engine.Finalize(ctx, id, req.Confirm)
	if err != nil {
		return allocationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"confirmed": req.Confirm,
		"completed": len(used),
	})
}

// ListBookings returns the schedule's passenger list grouped by state.
// Admin only.
func (h *ScheduleHandler) ListBookings(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Schedules.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	details, err := h.Bookings.ListDetailBySchedule(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	grouped := map[string][]repository.BookingDetail{
		"booked":  {},
		"waiting": {},
		"used":    {},
	}
	for _, d := range details {
		switch model.BookingStatus(d.Status) {
		case model.BookingBooked:
			grouped["booked"] = append(grouped["booked"], d)
		case model.BookingWaiting:
			grouped["waiting"] = append(grouped["waiting"], d)
		case model.BookingUsed:
			grouped["used"] = append(grouped["used"], d)
		}
	}
	return c.JSON(http.StatusOK, grouped)
}

// ListCancellations returns the cancellation audit records for a
// schedule. Admin only.
func (h *ScheduleHandler) ListCancellations(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	records, err := h.Cancellations.ListBySchedule(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cancellations": records})
}

// intQuery parses a bounded integer query parameter with a default.
func intQuery(c echo.Context, name string, def, max int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	if name == "limit" && n == 0 {
		return def
	}
	return n
}
