// main is the entry point of the Matchlist application.
// It initializes the configuration, logger, optional journal and GeoIP provider, and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/matchlist/internal/config"
	"github.com/woozymasta/matchlist/internal/fake"
	"github.com/woozymasta/matchlist/internal/geoip"
	"github.com/woozymasta/matchlist/internal/logger"
	"github.com/woozymasta/matchlist/internal/maintenance"
	"github.com/woozymasta/matchlist/internal/server"
	"github.com/woozymasta/matchlist/internal/storage"
	"github.com/woozymasta/matchlist/internal/vars"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Str("version", vars.String()).Msg("Starting matchlist service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	geoProvider := openGeoIP(ctx, cfg.GeoIP)
	defer func() {
		if err := geoProvider.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing GeoIP provider")
		}
	}()

	// Event journal
	var store *storage.Repository
	if cfg.Storage.Path != "" {
		var err error
		store, err = storage.New(ctx, cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event journal")
		}
		log.Info().Str("path", cfg.Storage.Path).Msg("Event journal enabled")
	}

	if maintenance.Run(ctx, cfg, store) {
		closeStore(store)
		return
	}

	// Init server
	srvHandler := server.New(store, geoProvider, cfg)

	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(srvHandler.Registry(), cfg.Storage.GenerateCount)
	}

	// Background workers
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()
	closeStore(store)

	log.Info().Msg("Server exited")
}

// openGeoIP refreshes and opens the country database. Failures only disable country tagging.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	if cfg.Path == "" {
		return nil
	}

	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return provider
}

func closeStore(store *storage.Repository) {
	if store == nil {
		return
	}

	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event journal")
	}
}
