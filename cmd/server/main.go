package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"obra-rdo/internal/config"
	"obra-rdo/internal/logger"
	"obra-rdo/internal/server"
	"obra-rdo/internal/storage"
	"obra-rdo/internal/store"
)

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	flag.Parse()

	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)

	backend, err := store.OpenBackend(cfg)
	if err != nil {
		logger.Error("store open failed", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	files, err := storage.NewAttachments(cfg.Storage.AttachmentsDir)
	if err != nil {
		logger.Error("attachments dir failed", "dir", cfg.Storage.AttachmentsDir, "err", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Storage.PDFDir, 0o755); err != nil {
		logger.Error("pdf dir failed", "dir", cfg.Storage.PDFDir, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := server.New(cfg, store.NewStores(backend), files)
	if created, err := app.Auth.Bootstrap(ctx); err != nil {
		logger.Error("admin bootstrap failed", "err", err)
		os.Exit(1)
	} else if created {
		logger.Warn("bootstrap admin created, change its password on first login", "username", cfg.Auth.AdminUser)
	}
	app.Drafts.StartJanitor(ctx, 10*time.Minute)

	logger.Info("server starting", "addr", cfg.Addr(), "store", cfg.Storage.Driver)
	if err := app.Router.Run(cfg.Addr()); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
