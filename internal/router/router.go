package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/vtransit/shuttle-booking/internal/config"
	"github.com/vtransit/shuttle-booking/internal/handler"
	"github.com/vtransit/shuttle-booking/internal/middleware"
	"github.com/vtransit/shuttle-booking/internal/model"
)

// Handlers bundles the wired handler set the router mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	Bookings  *handler.BookingHandler
	Schedules *handler.ScheduleHandler
	Buses     *handler.BusHandler
	Routes    *handler.RouteHandler
}

// Register mounts every endpoint on the Echo instance.
//
// Layout:
//
//	GET  /healthz                    liveness + DB reachability, no auth
//	POST /v1/auth/register|login     open
//	/v1/...                          any authenticated user, rate limited
//	/v1/admin/...                    ADMIN role only
func Register(e *echo.Echo, db *sql.DB, cfg config.Config, rdb *redis.Client, h Handlers) {
	e.GET("/healthz", handler.Health(db))

	open := e.Group("/v1/auth")
	open.POST("/register", h.Auth.Register)
	open.POST("/login", h.Auth.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RolePassenger))
	auth.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	auth.GET("/me", h.Auth.Me)

	// Rider booking surface.
	auth.POST("/bookings", h.Bookings.Place)
	auth.DELETE("/bookings/:id", h.Bookings.Cancel)
	auth.GET("/bookings", h.Bookings.MyBookings)
	auth.GET("/bookings/history", h.Bookings.MyHistory)

	// Browsing open to every authenticated user.
	auth.GET("/routes", h.Routes.List)
	auth.GET("/routes/:id", h.Routes.Get)
	auth.GET("/schedules", h.Schedules.List)
	auth.GET("/schedules/:id", h.Schedules.Get)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))

	admin.POST("/routes", h.Routes.Create)

	admin.POST("/buses", h.Buses.Create)
	admin.GET("/buses", h.Buses.List)
	admin.GET("/buses/:id", h.Buses.Get)
	admin.PUT("/buses/:id", h.Buses.Update)
	admin.DELETE("/buses/:id", h.Buses.Delete)

	admin.POST("/schedules", h.Schedules.Create)
	admin.PUT("/schedules/:id", h.Schedules.Update)
	admin.POST("/schedules/:id/confirm", h.Schedules.Confirm)
	admin.GET("/schedules/:id/bookings", h.Schedules.ListBookings)
	admin.GET("/schedules/:id/cancellations", h.Schedules.ListCancellations)

	admin.POST("/bookings/swap", h.Bookings.Swap)
}
