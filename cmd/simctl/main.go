package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cryptosim/cryptosim/internal/config"
	"github.com/cryptosim/cryptosim/internal/infra"
	"github.com/cryptosim/cryptosim/internal/logging"
	"github.com/cryptosim/cryptosim/internal/market"
	"github.com/cryptosim/cryptosim/internal/notification"
	"github.com/cryptosim/cryptosim/internal/simulator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewText(os.Stderr, cfg.LogLevel)

	open := func(ctx context.Context) (*simulator.Simulator, func() error, error) {
		res, err := infra.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		sim := simulator.Open(ctx, simulator.Deps{
			Repository:     res.Repository,
			Logger:         logger,
			Notifier:       notification.NewLoggerNotifier(logger),
			DisableMonitor: true,
		})
		closeFn := func() error {
			flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
			defer cancel()
			err := sim.Close(flushCtx)
			if cerr := res.Close(); err == nil {
				err = cerr
			}
			return err
		}
		return sim, closeFn, nil
	}

	root := newRootCmd(open, market.NewTickerClient(cfg.PriceAPIURL, cfg.PriceSymbol))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
