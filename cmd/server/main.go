package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/jobs"
	"github.com/anonto42/snapfeed/backend/internal/router"
	"github.com/anonto42/snapfeed/backend/pkg/config"
	"github.com/anonto42/snapfeed/backend/pkg/firebase"
	"github.com/anonto42/snapfeed/backend/pkg/logger"
	"github.com/anonto42/snapfeed/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

func run() error {
	// Load configuration
	cfg := config.Load()
	logger.Setup(cfg.Env, cfg.LogLevel)

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("initialize databases: %w", err)
	}
	defer db.CloseDB()

	deps := router.Dependencies{
		Config:   cfg,
		Postgres: db.Postgres,
		Mongo:    db.Mongo,
	}

	// Firebase is optional; without it only local accounts can sign in
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	switch {
	case err == nil:
		deps.FirebaseAuth = firebaseApp.AuthClient
	case errors.Is(err, firebase.ErrNotConfigured):
		log.Warn().Msg("FIREBASE_CREDENTIALS_PATH not set, Firebase login disabled.")
	default:
		return fmt.Errorf("initialize firebase: %w", err)
	}

	svc, err := router.NewServices(deps)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	// Configure timed tasks
	scheduler := jobs.NewScheduler()
	if svc.Timelines != nil {
		if err := scheduler.AddTimelinePruning(cfg.PruneSchedule, svc.Timelines); err != nil {
			return err
		}
	}
	scheduler.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e)
	router.SetupRoutes(e, db.Postgres, svc)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case err := <-serveErr:
		runErr = fmt.Errorf("server stopped unexpectedly: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	scheduler.Stop(shutdownCtx)
	log.Info().Msg("Server stopped")
	return runErr
}
