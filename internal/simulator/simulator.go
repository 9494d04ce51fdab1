package simulator

import (
	"context"
	"log/slog"
	"time"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/loan"
	"github.com/cryptosim/cryptosim/internal/monitor"
	"github.com/cryptosim/cryptosim/internal/notification"
	"github.com/cryptosim/cryptosim/internal/trade"
)

// Deps collects what a session needs. Zero values fall back to an in-memory
// repository, the default logger, the wall clock and the default monitor
// interval.
type Deps struct {
	Repository      ledger.Repository
	Logger          *slog.Logger
	Notifier        notification.Notifier
	Clock           func() time.Time
	MonitorInterval time.Duration
	// DisableMonitor keeps the loan monitor from polling; Check still works.
	DisableMonitor bool
}

// Simulator is one trading session: the ledger, its engines and the loan
// monitor, opened and closed together.
type Simulator struct {
	Store   *ledger.Store
	Trades  *trade.Service
	Loans   *loan.Service
	Monitor *monitor.Monitor

	logger *slog.Logger
}

// Open restores the session from deps.Repository and starts the loan monitor.
func Open(ctx context.Context, deps Deps) *Simulator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	store := ledger.NewStore(deps.Repository, logger, deps.Notifier)
	loans := loan.NewService(store, clock)
	mon := monitor.New(store, loans, logger, monitor.WithInterval(deps.MonitorInterval), monitor.WithClock(clock))

	restored := store.Load(ctx)
	logger.Info("session opened", "restored", restored)

	if !deps.DisableMonitor {
		mon.Start(context.WithoutCancel(ctx))
	}

	return &Simulator{
		Store:   store,
		Trades:  trade.NewService(store, clock),
		Loans:   loans,
		Monitor: mon,
		logger:  logger,
	}
}

// Close stops the monitor and waits for pending saves to be flushed.
func (s *Simulator) Close(ctx context.Context) error {
	s.Monitor.Stop()
	if err := s.Store.Close(ctx); err != nil {
		s.logger.Warn("flush portfolio", "error", err)
		return err
	}
	return nil
}
