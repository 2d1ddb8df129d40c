package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vtransit/shuttle-booking/internal/allocation"
	"github.com/vtransit/shuttle-booking/internal/model"
	"github.com/vtransit/shuttle-booking/internal/repository"
)

// BookingHandler exposes the rider-facing booking endpoints plus the
// admin swap. Every mutation goes through the allocation engine; this
// layer only binds requests, checks ownership and shapes responses.
type BookingHandler struct {
	Engine   *allocation.Engine
	Bookings *repository.BookingRepo
}

func NewBookingHandler(engine *allocation.Engine, bookings *repository.BookingRepo) *BookingHandler {
	if engine == nil || bookings == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: engine, Bookings: bookings}
}

type placeReq struct {
	ScheduleID uint64 `json:"schedule_id"`
}

type bookingPart struct {
	ID         uint64 `json:"id"`
	ScheduleID uint64 `json:"schedule_id"`
	Status     string `json:"status"`
	PayStatus  bool   `json:"pay_status"`
}

func toBookingPart(b *model.Booking) bookingPart {
	return bookingPart{
		ID:         b.ID,
		ScheduleID: b.ScheduleID,
		Status:     string(b.Status),
		PayStatus:  b.PayStatus,
	}
}

// Place books a seat on a schedule for the authenticated rider. The
// response status reveals whether the rider got a seat (BOOKED) or
// joined the waiting queue (WAITING).
func (h *BookingHandler) Place(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req placeReq
	if err := c.Bind(&req); err != nil || req.ScheduleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	b, err := h.Engine.Place(ctx, uid, req.ScheduleID)
	if err != nil {
		return allocationError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingPart(b))
}

// Cancel removes the rider's own booking. Admins may cancel any booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	// Ownership check outside the engine: riders may only touch their own
	// bookings. USED bookings read as not-found, same as the engine.
	if role, _ := c.Get("role").(string); role != model.RoleAdmin {
		b, err := h.Bookings.GetDetailByID(ctx, id)
		if err != nil || b.UserID != uid {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
	}

	removed, err := h.Engine.Cancel(ctx, id)
	if err != nil {
		return allocationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cancelled": toBookingPart(removed),
	})
}

type swapReq struct {
	ScheduleID uint64 `json:"schedule_id"`
	BookedID   uint64 `json:"booked_id"`
	WaitingID  uint64 `json:"waiting_id"`
}

// Swap substitutes a waiting rider into a confirmed rider's seat on the
// same schedule. Admin only; the displaced booking leaves no
// cancellation record.
func (h *BookingHandler) Swap(c echo.Context) error {
	var req swapReq
	if err := c.Bind(&req); err != nil || req.ScheduleID == 0 || req.BookedID == 0 || req.WaitingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "schedule_id/booked_id/waiting_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	promoted, err := h.Engine.Swap(ctx, req.BookedID, req.WaitingID, req.ScheduleID)
	if err != nil {
		return allocationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"promoted": toBookingPart(promoted),
	})
}

// MyBookings lists the rider's active (BOOKED and WAITING) bookings with
// trip details.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	booked, err := h.Bookings.ListDetailByUser(ctx, uid, model.BookingBooked)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	waiting, err := h.Bookings.ListDetailByUser(ctx, uid, model.BookingWaiting)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booked":  booked,
		"waiting": waiting,
	})
}

// MyHistory lists the rider's completed (USED) trips, newest first.
func (h *BookingHandler) MyHistory(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	used, err := h.Bookings.ListDetailByUser(ctx, uid, model.BookingUsed)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"history": used})
}
