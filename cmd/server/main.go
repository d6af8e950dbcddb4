// Package main is the entry point for the FileShelf server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/FileShelf/internal/app"
	"github.com/dharsanguruparan/FileShelf/internal/config"
	"github.com/dharsanguruparan/FileShelf/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("FILESHELF_CONFIG"))
	if err != nil {
		bootLogger := logging.New(logging.Config{})
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// The context is cancelled on SIGINT/SIGTERM, which starts graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init")
	}
	defer a.Close()
	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		a.Close()
		os.Exit(1)
	}
}
