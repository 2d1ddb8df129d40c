package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vtransit/shuttle-booking/internal/model"
	"github.com/vtransit/shuttle-booking/internal/repository"
)

// BusHandler exposes fleet administration. Assigning a bus to a schedule
// happens through the schedule endpoints; this is plain master data.
type BusHandler struct {
	Buses *repository.BusRepo
}

func NewBusHandler(buses *repository.BusRepo) *BusHandler {
	if buses == nil {
		panic("nil repository passed to NewBusHandler")
	}
	return &BusHandler{Buses: buses}
}

type busReq struct {
	Model         string  `json:"model"`
	PlateNumber   string  `json:"plate_number"`
	NumOfSeat     int     `json:"num_of_seat"`
	DriverName    string  `json:"driver_name"`
	DriverContact *string `json:"driver_contact"`
}

func (r *busReq) validate() string {
	r.Model = strings.TrimSpace(r.Model)
	r.PlateNumber = strings.TrimSpace(r.PlateNumber)
	r.DriverName = strings.TrimSpace(r.DriverName)
	switch {
	case r.Model == "" || r.PlateNumber == "" || r.DriverName == "":
		return "model/plate_number/driver_name required"
	case r.NumOfSeat <= 0:
		return "num_of_seat must be positive"
	}
	return ""
}

type busResp struct {
	ID            uint64  `json:"id"`
	Model         string  `json:"model"`
	PlateNumber   string  `json:"plate_number"`
	NumOfSeat     int     `json:"num_of_seat"`
	DriverName    string  `json:"driver_name"`
	DriverContact *string `json:"driver_contact"`
	Enabled       bool    `json:"enabled"`
}

func toBusResp(b model.Bus) busResp {
	return busResp{
		ID:            b.ID,
		Model:         b.Model,
		PlateNumber:   b.PlateNumber,
		NumOfSeat:     b.NumOfSeat,
		DriverName:    b.DriverName,
		DriverContact: b.DriverContact,
		Enabled:       b.Enabled,
	}
}

// Create registers a bus in the fleet.
func (h *BusHandler) Create(c echo.Context) error {
	var req busReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b := &model.Bus{
		Model:         req.Model,
		PlateNumber:   req.PlateNumber,
		NumOfSeat:     req.NumOfSeat,
		DriverName:    req.DriverName,
		DriverContact: req.DriverContact,
	}
	id, err := h.Buses.Create(ctx, b)
	if err != nil {
		if err == repository.ErrPlateExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate number already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create bus failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Get returns one bus.
func (h *BusHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bus id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Buses.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bus not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toBusResp(b))
}

// List returns the whole fleet.
func (h *BusHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	buses, err := h.Buses.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	items := make([]busResp, 0, len(buses))
	for _, b := range buses {
		items = append(items, toBusResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Update rewrites a bus's details. A seat-count change only affects
// schedules the next time one of them is edited and reconciled.
func (h *BusHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bus id"})
	}
	var req busReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b := &model.Bus{
		ID:            id,
		Model:         req.Model,
		PlateNumber:   req.PlateNumber,
		NumOfSeat:     req.NumOfSeat,
		DriverName:    req.DriverName,
		DriverContact: req.DriverContact,
	}
	if err := h.Buses.Update(ctx, b); err != nil {
		switch err {
		case repository.ErrPlateExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate number already exists"})
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bus not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update bus failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a bus from the fleet.
func (h *BusHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bus id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Buses.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bus not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete bus failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
