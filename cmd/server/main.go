// Identity Showcase - challenge-response identity orchestrator demo server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"idshowcase/internal/api"
	"idshowcase/internal/authentication"
	"idshowcase/internal/config"
	"idshowcase/internal/mobileauth"
	"idshowcase/internal/pin"
	"idshowcase/internal/push"
	"idshowcase/internal/registration"
	"idshowcase/internal/session"
	"idshowcase/internal/simulator"
	"idshowcase/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	settings, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize settings store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := settings.Close(); closeErr != nil {
			slog.Error("Failed to close settings store", "error", closeErr)
		}
	}()

	if err := settings.Ping(context.Background()); err != nil {
		slog.Error("Settings store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Settings store connected")

	// Wire the orchestrator against the in-process Identity Service.
	client := simulator.New()
	state := session.New()
	hub := push.NewHub(nil)

	pinCoord := pin.New(state, client, cfg.PinDebounce)
	regCoord := registration.New(state, client, pinCoord)
	authCoord := authentication.New(state, client, pinCoord)
	mobileCoord := mobileauth.New(state, client, pinCoord, hub, hub)
	hub.SetPayloadHandler(mobileCoord.HandlePush)

	// Honor the persisted auto-initialize flag from the previous run.
	autoInit, err := settings.AutoInitialize(context.Background())
	if err != nil {
		slog.Error("Failed to read auto-initialize flag", "error", err)
		os.Exit(1)
	}
	if autoInit {
		if err := client.Initialize(context.Background()); err != nil {
			slog.Error("Auto-initialization failed", "error", err)
			os.Exit(1)
		}
		state.SetInitialized(true)
		slog.Info("Identity Service auto-initialized")
	}

	handler := api.NewHandler(state, client, settings, regCoord, authCoord, pinCoord, mobileCoord)
	demoHandler := api.NewDemoHandler(client, mobileCoord)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	handler.RegisterRoutes(r)
	demoHandler.RegisterRoutes(r)

	// WebSocket endpoint: badge counts and navigation out, push payloads in.
	r.Get("/ws/push", hub.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
