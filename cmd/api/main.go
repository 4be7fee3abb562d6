package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/giftstream/giftstream/internal/app"
	"github.com/giftstream/giftstream/internal/config"
	"github.com/giftstream/giftstream/internal/infra"
	"github.com/giftstream/giftstream/internal/logging"
	"github.com/giftstream/giftstream/internal/migrations"
	"github.com/giftstream/giftstream/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewWithFile(cfg.LogLevel, cfg.LogFile)

	ctx := context.Background()

	if cfg.DatabaseURL != "" {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Error("apply migrations", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	backends, err := infra.Connect(ctx, cfg.DatabaseURL, cfg.RedisURL, cfg.AppName)
	if err != nil {
		logger.Error("connect backends", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("close backends", "error", err)
		}
	}()

	container, err := app.New(cfg, backends.DB, backends.Cache, logger)
	if err != nil {
		logger.Error("wire services", "error", err)
		os.Exit(1)
	}
	if err := container.BootstrapDevAdmin(ctx); err != nil {
		logger.Error("bootstrap admin", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(container)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
