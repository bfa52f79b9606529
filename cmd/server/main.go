package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/e-kose/FT-PINPON-sub002/internal/logging"
)

func main() {
	config := LoadConfig()
	log := logging.New(config.Environment, config.LogLevel, "game")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(ctx, config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}
	defer server.Close()

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		server.Close()
		os.Exit(1)
	}
}
