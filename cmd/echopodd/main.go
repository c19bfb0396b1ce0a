package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"echopod/internal/config"
	"echopod/internal/daemon"
	"echopod/internal/logging"
	"echopod/internal/pipeline"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Error("assemble pipeline", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, p, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = p.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("echopodd shutting down")
}
