// Command dashd runs the live session dashboard sync core and serves its
// render models over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/config"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.LogLevel)

	log.Info().
		Str("base_url", cfg.BaseURL).
		Str("stream_url", cfg.StreamURL()).
		Bool("realtime", cfg.Realtime).
		Str("push_transport", cfg.Push.Transport).
		Str("listen_addr", cfg.ListenAddr).
		Msg("starting dashboard")

	dash := setupDashboard(cfg)
	server := setupServer(cfg, dash)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dash.Start(ctx)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("view server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("view server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// open /view/events streams end once the dashboard closes its bus
	dash.Stop()
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("view server shutdown failed")
	}

	log.Info().Msg("dashboard shutdown complete")
}
