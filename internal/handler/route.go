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

// RouteHandler exposes route master data. Creation is admin only;
// listing is open to any authenticated user so riders can browse.
type RouteHandler struct {
	Routes *repository.RouteRepo
}

func NewRouteHandler(routes *repository.RouteRepo) *RouteHandler {
	if routes == nil {
		panic("nil repository passed to NewRouteHandler")
	}
	return &RouteHandler{Routes: routes}
}

type routeReq struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"` // HH:MM
}

type routeResp struct {
	ID            uint64 `json:"id"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
}

func toRouteResp(rt model.Route) routeResp {
	return routeResp{
		ID:            rt.ID,
		Origin:        rt.Origin,
		Destination:   rt.Destination,
		DepartureTime: rt.DepartureTime,
	}
}

// Create registers a route.
func (h *RouteHandler) Create(c echo.Context) error {
	var req routeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "origin/destination required"})
	}
	if _, err := time.Parse("15:04", req.DepartureTime); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "departure_time must be HH:MM"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Routes.Create(ctx, req.Origin, req.Destination, req.DepartureTime)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create route failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Get returns one route.
func (h *RouteHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rt, err := h.Routes.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "route not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toRouteResp(rt))
}

// List returns all routes.
func (h *RouteHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	routes, err := h.Routes.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	items := make([]routeResp, 0, len(routes))
	for _, rt := range routes {
		items = append(items, toRouteResp(rt))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
