package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genstudio/internal/config"
	"genstudio/internal/daemon"
	"genstudio/internal/history"
	"genstudio/internal/logging"
)

func main() {
	_ = godotenv.Load()

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

	var ledger *history.Store
	if cfg.History.Enabled {
		ledger, err = history.Open(cfg)
		if err != nil {
			logger.Error("open history ledger", logging.Error(err))
			// Generation still works without the ledger.
			ledger = nil
		}
	}

	d, err := daemon.New(cfg, logger, ledger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	if addr := d.APIAddr(); addr != "" {
		logger.Info("api listening", logging.String("address", addr))
	}

	<-ctx.Done()
	logger.Info("genstudiod shutting down")
}
