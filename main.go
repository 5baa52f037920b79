package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"beatspace/config"
	"beatspace/database"
	"beatspace/handlers"
	"beatspace/media"
	"beatspace/mediation"
	"beatspace/middleware"
	"beatspace/routes"
	"beatspace/store"
	"beatspace/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "event", "dotenv_skipped", "error", err)
	}

	config.LoadConfig()
	setupLogger()

	ctx := context.Background()
	client, err := database.Connect(ctx, config.MongoURL)
	if err != nil {
		slog.Error("failed to connect to database", "event", "db_connect_failed", "error", err)
		os.Exit(1)
	}
	db := client.Database(config.DBName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		slog.Error("failed to create indexes", "event", "db_indexes_failed", "error", err)
		os.Exit(1)
	}

	st := store.New(database.NewMongoDatabase(db))
	hub := websocket.NewHub()
	svc := mediation.NewService(st, hub)

	if err := svc.EnsureAdmin(ctx, config.AdminEmail, config.AdminPassword); err != nil {
		slog.Error("failed to ensure admin account", "event", "admin_seed_failed", "error", err)
		os.Exit(1)
	}

	uploader := media.FromConfig()
	if !uploader.Configured() {
		slog.Warn("image CDN credentials not set, uploads disabled", "event", "uploads_disabled")
	}

	// Router setup
	router := mux.NewRouter()
	routes.RegisterRoutes(router, handlers.New(svc, uploader, hub), websocket.NewHandler(hub, st.Users), st.Users)

	// Global middlewares (order matters!)
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.CorsMiddleware(config.CORSOrigins))
	router.Use(middleware.TimeoutMiddleware(config.RequestTimeout))

	// HTTP server configuration
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("BeatSpace backend listening", "event", "server_started", "port", config.Port, "environment", config.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "event", "server_failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	<-quit
	slog.Info("shutting down server", "event", "server_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server forced shutdown", "event", "server_forced_shutdown", "error", err)
	}

	database.Disconnect(client)
	slog.Info("server stopped", "event", "server_stopped")
}

func setupLogger() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if config.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
