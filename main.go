package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notevault/config"
	"notevault/config/database"
	"notevault/pkg/logger"
	"notevault/router"
	"notevault/socket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, fromFile := config.Load()

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if !fromFile {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	if cfg.JWTSecret == "" {
		logger.Sugar.Warn("JWT_SECRET is not set; bearer tokens will be rejected and anonymous requests run as the default user")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Sugar.Fatalf("Could not prepare schema: %v", err)
	}

	hub := socket.NewHub()
	go hub.Run()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Setup(db, hub, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("NoteVault listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; the hub closes them.
	hub.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}
}
