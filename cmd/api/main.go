package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cryptosim/cryptosim/internal/config"
	"github.com/cryptosim/cryptosim/internal/infra"
	"github.com/cryptosim/cryptosim/internal/logging"
	"github.com/cryptosim/cryptosim/internal/market"
	"github.com/cryptosim/cryptosim/internal/notification"
	"github.com/cryptosim/cryptosim/internal/routes"
	"github.com/cryptosim/cryptosim/internal/server"
	"github.com/cryptosim/cryptosim/internal/simulator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("portfolio_key", cfg.PortfolioKey)

	ctx := context.Background()

	res, err := infra.Open(ctx, cfg)
	if err != nil {
		logger.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("close backends", "error", err)
		}
	}()

	sim := simulator.Open(ctx, simulator.Deps{
		Repository:      res.Repository,
		Logger:          logger,
		Notifier:        notification.NewLoggerNotifier(logger),
		MonitorInterval: cfg.MonitorInterval,
	})

	srv, err := server.New(cfg, routes.Deps{
		Sim:       sim,
		Prices:    market.NewTickerClient(cfg.PriceAPIURL, cfg.PriceSymbol),
		DB:        res.DB,
		SQL:       res.SQL,
		Cache:     res.Cache,
		AccessLog: true,
	}, logger)
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
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := sim.Close(shutdownCtx); err != nil {
		logger.Error("flush portfolio", "error", err)
	}

	logger.Info("server exited cleanly")
}
