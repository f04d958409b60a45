package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/2b33rs/codevision-backend/internal/app"
	"github.com/2b33rs/codevision-backend/internal/config"
	"github.com/2b33rs/codevision-backend/internal/db"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/platform/observability"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	app.SetupLogger(cfg.App)
	log.Info().Str("version", app.Version).Msg("Order service starting...")

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracingSDK(ctx, cfg.App.Name, app.Version, cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	if err := db.Migrate(cfg.Postgres, db.Up); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	publisher := app.NewPublisher(cfg.Kafka)
	services := app.Wire(cfg, order.NewRepository(dbConn.Pool), publisher)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      services.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	if closer, ok := publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}
	log.Info().Msg("Server stopped")
}
