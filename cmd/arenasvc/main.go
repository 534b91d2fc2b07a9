package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/stakearena/arena-services/configs"
	"github.com/stakearena/arena-services/internal/arenasvc/auth"
	"github.com/stakearena/arena-services/internal/arenasvc/broker"
	"github.com/stakearena/arena-services/internal/arenasvc/db"
	"github.com/stakearena/arena-services/internal/arenasvc/handlers"
	"github.com/stakearena/arena-services/internal/arenasvc/routes"
	"github.com/stakearena/arena-services/internal/arenasvc/service"
	"github.com/stakearena/arena-services/internal/arenasvc/store"
	"github.com/stakearena/arena-services/internal/arenasvc/ws"
	nats "github.com/stakearena/arena-services/internal/nats"
)

const SERVICE_NAME = "arena"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// pg connection
	dbpool, err := db.Connect(context.Background(), os.Getenv("POSTGRES_URL"))
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dbpool.Close()
	log.Printf("pg connection established successfully")

	pg := store.NewPostgres(dbpool)
	settle := service.NewSettlementEngine(service.SettlementConfig{
		FeeBps:      config.EnvInt64("FEE_BPS", service.DefaultFeeBps),
		ReferralBps: config.EnvInt64("REFERRAL_BPS", service.DefaultReferralBps),
	})
	coordinator := service.NewCoordinator(pg, settle)
	userService := service.NewUserService(pg)

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	auth.Init()

	// Initialize websocket gateway with the room event fanout
	gw := ws.NewGateway(coordinator)
	b := broker.NewBroker(n.Conn)
	gw.Broker = b

	sub, err := b.SubscribeRoomEvents(gw.DeliverLocal)
	if err != nil {
		log.Errorf("Error: unable to subscribe to room events %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(gw, userService)
	routes.SetRoutes(r, h)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("ARENA_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
