// Package main wires together the eSIM crawler service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/app"
	"github.com/esimwatch/esim-crawler/internal/config"
	"github.com/esimwatch/esim-crawler/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "serve", "Run mode: serve or batch")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger, *mode); err != nil {
		logger.Error("service exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger, mode string) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}
	defer a.Close()

	switch mode {
	case "serve":
		return a.Serve(ctx)
	case "batch":
		return a.Batch(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}
