package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"parking-gate-backend/config"
	"parking-gate-backend/internal/api"
	"parking-gate-backend/internal/arming"
	"parking-gate-backend/internal/db"
	"parking-gate-backend/internal/dispatch"
	"parking-gate-backend/internal/gateway"
	"parking-gate-backend/internal/notification"
	"parking-gate-backend/internal/state"
	"parking-gate-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "parking-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Check for VAPID keys
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatalf("auth.jwt_secret must be configured.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Rebuild the in-memory snapshot from the last durable copy, if any.
	occupancy := state.New()
	if snap, err := appStore.LoadSnapshot(ctx); err != nil {
		logger.Printf("warning: could not restore snapshot: %v", err)
	} else if snap != nil {
		occupancy.Update(func(s *state.Snapshot) { *s = *snap })
		logger.Println("occupancy snapshot restored from database")
	}

	hub := gateway.NewHub()

	// Notification worker pool for invoice push delivery
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, cfg.Parking.RatePerHour)
	workerPool.Start(ctx)

	armingCache := arming.NewCache(cfg.Parking.AuthWindow)
	dispatcher := dispatch.New(occupancy, appStore, armingCache, hub, workerPool)

	// Mirror actuator connectivity into the snapshot for observers.
	hub.OnActuatorChange(func(connected bool) {
		snap := occupancy.Update(func(s *state.Snapshot) {
			s.WifiConnected = connected
			s.Touch(time.Now().UTC())
		})
		hub.Broadcast(map[string]any{"type": "actuator_status", "connected": connected})
		if !connected {
			hub.Broadcast(map[string]any{"type": "parking_data_update", "data": snap})
		}
	})

	// Initialize router
	handler := api.NewHandler(appStore, occupancy, dispatcher, hub, &webpushOptions, cfg)
	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
