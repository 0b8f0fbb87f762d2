package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onekk/gplanner/config"
	"github.com/onekk/gplanner/internal/logger"
	"github.com/onekk/gplanner/telemetry"
)

func main() {
	configPath := flag.String("config", "gplanner.toml", "path to the active TOML configuration")
	telemetryAddr := flag.String("telemetry", "", "address to serve the read-only telemetry feed on, empty to disable")
	flag.Parse()

	p, err := config.New(*configPath)
	if err != nil {
		logger.Errorf("startup: %v", err)
		os.Exit(1)
	}
	logger.Infof("main thread %d running", logger.GID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *telemetryAddr != "" {
		go func() {
			if err := telemetry.Run(ctx, *telemetryAddr, p, 200*time.Millisecond); err != nil {
				logger.Errorf("telemetry: %v", err)
			}
		}()
	}

	<-ctx.Done()
	p.Synchronize()
	logger.Sync()
}
