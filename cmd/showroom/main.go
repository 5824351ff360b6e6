package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"showroom/internal/app"
	"showroom/internal/config"
	"showroom/internal/logger"
	"showroom/internal/transport"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log := logger.NewWithDefaults(cfg.App.Env)
	defer log.Sync()

	// Cancel in-flight image downloads on Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Debug("Starting showroom",
		zap.String("env", cfg.App.Env),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start showroom", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	cli := transport.NewCLI(a.Showroom, cfg.Storage, log)
	return cli.Execute(ctx, os.Args[1:])
}
