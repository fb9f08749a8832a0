package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codigos/codigos/internal/common/logtrace"
	"github.com/codigos/codigos/internal/mockapi"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
	port       string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	cfg := mockapi.DefaultConfig()
	if opt.configFile != "" {
		slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
		var err error
		if cfg, err = mockapi.LoadConfig(opt.configFile); err != nil {
			return fmt.Errorf("loading config file: %w", err)
		}
	} else {
		slog.Warn().Msg("no config file given, serving the built-in seed")
	}
	if opt.port != "" {
		cfg.ServerPort = opt.port
	}

	serverErrors, shutdownServer, err := createServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createServer(ctx context.Context, cfg *mockapi.ConfigParam) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := mockapi.CreateNewServer(cfg)
	if err != nil {
		return nil, nil, err
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("port", cfg.ServerPort).Str("version", mockapi.Version).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

func parseFlags() *cmdoptions {
	opt := &cmdoptions{}
	flag.StringVar(&opt.configFile, "config", "", "Path to the TOML config file")
	flag.StringVar(&opt.port, "port", "", "Port to listen on, overriding the config file")
	flag.Parse()
	return opt
}
