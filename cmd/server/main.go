// Package main is the entry point for the broker API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/reciclo/broker/internal/blob"
	"github.com/reciclo/broker/internal/config"
	"github.com/reciclo/broker/internal/db"
	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/handlers"
	"github.com/reciclo/broker/internal/user"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database")

	// Attachment storage is optional; without it the API runs with
	// attachment routes disabled.
	var blobs *blob.Client
	if cfg.StorageEndpoint != "" {
		blobs, err = blob.NewClient(cfg.StorageEndpoint, cfg.StorageAccessKey,
			cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageRegion)
		if err != nil {
			slog.Error("failed to initialize blob storage", "error", err)
			os.Exit(1)
		}
		slog.Info("blob storage configured", "bucket", cfg.StorageBucket)
	} else {
		slog.Warn("blob storage not configured; attachment routes disabled")
	}

	deals := deal.NewService(database)
	users := user.NewService(database)
	h := handlers.New(deals, users, blobs)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Mount("/", h.Routes())

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
