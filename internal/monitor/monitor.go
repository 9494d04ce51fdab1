package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/loan"
	"github.com/cryptosim/cryptosim/internal/money"
	"github.com/cryptosim/cryptosim/internal/notification"
)

const (
	// DefaultInterval is how often an active loan is inspected.
	DefaultInterval = 60 * time.Second
	// DueSoonWindow is how close to its due date a loan must be to trigger a warning.
	DueSoonWindow = 24 * time.Hour
)

// Penalizer applies the overdue penalty when the committed loan is past due.
type Penalizer interface {
	PenalizeOverdue(ctx context.Context) (ledger.Portfolio, *notification.Notification, error)
}

// Monitor polls the active loan of a store, warns once when it is due soon
// and penalizes it once it is overdue. Polling runs only while a loan exists.
type Monitor struct {
	store    *ledger.Store
	loans    Penalizer
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	parent  context.Context
	stopped bool
	active  *poll
	warned  time.Time // LoanDate of the loan instance already warned about
	wg      sync.WaitGroup
}

type poll struct {
	loanDate time.Time
	cancel   context.CancelFunc
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval overrides the polling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock overrides the wall clock used to judge due dates.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New wires a monitor to store. It follows loan changes from the moment it is
// created but only polls after Start.
func New(store *ledger.Store, loans Penalizer, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		store:    store,
		loans:    loans,
		logger:   logger,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	store.Subscribe(m.sync)
	return m
}

// Start enables polling under ctx and begins inspecting the current loan, if any.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.parent = ctx
	m.stopped = false
	m.mu.Unlock()

	m.logger.Info("loan monitor started", "interval", m.interval)
	m.sync(m.store.Snapshot())
}

// Stop cancels polling and waits for the polling goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.cancelLocked()
	m.mu.Unlock()

	m.wg.Wait()
}

// Active reports whether a polling loop is currently running.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// sync is called by the store, under its lock, for every committed state.
// It must not call back into the store.
func (m *Monitor) sync(p ledger.Portfolio) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Loan == nil {
		m.cancelLocked()
		m.warned = time.Time{}
		return
	}
	if m.parent == nil || m.stopped {
		return
	}
	if m.active != nil && m.active.loanDate.Equal(p.Loan.LoanDate) {
		return
	}

	m.cancelLocked()
	if !m.warned.Equal(p.Loan.LoanDate) {
		m.warned = time.Time{}
	}
	ctx, cancel := context.WithCancel(m.parent)
	m.active = &poll{loanDate: p.Loan.LoanDate, cancel: cancel}
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *Monitor) cancelLocked() {
	if m.active != nil {
		m.active.cancel()
		m.active = nil
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check performs one inspection of the active loan.
func (m *Monitor) Check(ctx context.Context) {
	p := m.store.Snapshot()
	if p.Loan == nil {
		return
	}
	l := *p.Loan
	now := m.now()

	if now.After(l.DueDate) {
		after, notice, err := m.loans.PenalizeOverdue(ctx)
		if err != nil {
			m.logger.Error("apply loan penalty", "error", err)
			return
		}
		if notice != nil {
			m.logger.Warn("loan penalized", "due_date", l.DueDate, "penalty", notice.Payload["amount"], "usd_balance", after.USDBalance.String())
		}
		return
	}

	remaining := l.DueDate.Sub(now)
	if remaining <= 0 || remaining >= DueSoonWindow {
		return
	}

	m.mu.Lock()
	if m.warned.Equal(l.LoanDate) {
		m.mu.Unlock()
		return
	}
	m.warned = l.LoanDate
	m.mu.Unlock()

	// Committed so the warning is only placed while this loan is still active.
	if _, _, err := m.store.Commit(ctx, dueSoonMutator(l)); err != nil {
		m.logger.Error("warn loan due soon", "error", err)
	}
}

// dueSoonMutator leaves the state unchanged and emits the due-soon warning
// only if the committed loan is the instance l.
func dueSoonMutator(l ledger.Loan) ledger.Mutator {
	return func(p ledger.Portfolio) (ledger.Change, error) {
		if p.Loan == nil || !p.Loan.LoanDate.Equal(l.LoanDate) {
			return ledger.Change{}, nil
		}
		return ledger.Change{
			Notice: notification.Warning(notification.KeyLoanDueSoon, map[string]any{
				"dueDate": l.DueDate.UTC().Format(time.RFC3339),
				"amount":  loan.DueAtTerm(l).StringFixed(money.CurrencyPlaces),
			}),
		}, nil
	}
}
