// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/replenishment-engine/internal/api"
	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/repository/postgres"
	"github.com/andresuchdata/replenishment-engine/internal/service"
	"github.com/andresuchdata/replenishment-engine/pkg/logger"
)

const (
	httpShutdownTimeout     = 5 * time.Second
	orchestratorStopTimeout = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.App.LogLevel, cfg.App.LogFormat)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Initialize engine
	svc, err := service.NewFromConfig(ctx, cfg, db)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize replenishment engine")
	}
	if cfg.Schedule.Enabled {
		if err := svc.Start(ctx); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to start orchestrator")
		}
	} else {
		logger.Log.Info().Msg("Schedule disabled; jobs run only on demand")
	}

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{Replenishment: svc}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	httpCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight runs finish and record their results before exit
	stopCtx, stopCancel := context.WithTimeout(ctx, orchestratorStopTimeout)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Orchestrator did not stop cleanly")
	}

	logger.Log.Info().Msg("Server exiting")
}
