package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/vtransit/shuttle-booking/internal/allocation"
	"github.com/vtransit/shuttle-booking/internal/config"
	"github.com/vtransit/shuttle-booking/internal/database"
	"github.com/vtransit/shuttle-booking/internal/handler"
	"github.com/vtransit/shuttle-booking/internal/queue"
	"github.com/vtransit/shuttle-booking/internal/repository"
	"github.com/vtransit/shuttle-booking/internal/router"
	"github.com/vtransit/shuttle-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tickets := repository.NewTicketRepo(db)
	routes := repository.NewRouteRepo(db)
	buses := repository.NewBusRepo(db)
	schedules := repository.NewScheduleRepo(db)
	bookings := repository.NewBookingRepo(db)
	cancellations := repository.NewCancellationRepo(db)
	store := repository.NewStore(db, users, tickets, routes, buses, schedules, bookings, cancellations)

	var notifier allocation.Notifier
	if cfg.AMQPURL != "" {
		notifier = service.NewAMQPNotifier(cfg.AMQPURL)
		go queue.StartNotificationConsumer(cfg.AMQPURL)
	} else {
		log.Println("AMQP_URL not set; trip notifications disabled")
	}

	engine := allocation.NewEngine(store, notifier, cfg.CampusLocation)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unreachable; rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, db, cfg, rdb, router.Handlers{
		Auth:      handler.NewAuthHandler(cfg, users, tickets),
		Bookings:  handler.NewBookingHandler(engine, bookings),
		Schedules: handler.NewScheduleHandler(engine, schedules, routes, buses, bookings, cancellations),
		Buses:     handler.NewBusHandler(buses),
		Routes:    handler.NewRouteHandler(routes),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
