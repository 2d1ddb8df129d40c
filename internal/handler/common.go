package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vtransit/shuttle-booking/internal/allocation"
)

// getUserID extracts the user_id stored by the JWT middleware and
// converts it to uint64. JWT numeric claims arrive as float64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses the named path parameter as a uint64 id.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// allocationError maps the engine's typed errors onto HTTP responses.
// Handlers call this after any engine operation so every endpoint
// reports the same status for the same failure.
func allocationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, allocation.ErrScheduleNotFound),
		errors.Is(err, allocation.ErrBookingNotFound),
		errors.Is(err, allocation.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, allocation.ErrScheduleClosed),
		errors.Is(err, allocation.ErrDuplicateBooking),
		errors.Is(err, allocation.ErrNoTicketsRemaining),
		errors.Is(err, allocation.ErrMaxTicketsInHand),
		errors.Is(err, allocation.ErrScheduleMismatch):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, allocation.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent update, retry"})
	case errors.Is(err, allocation.ErrStoreUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
