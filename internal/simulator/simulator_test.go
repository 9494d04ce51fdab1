package simulator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/logging"
	"github.com/cryptosim/cryptosim/internal/notification"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (n *captureNotifier) Send(_ context.Context, msg notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *captureNotifier) keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, msg := range n.sent {
		out = append(out, msg.MessageKey)
	}
	return out
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	repo := ledger.NewFileRepository(filepath.Join(t.TempDir(), "portfolio.json"))
	clock := &testClock{t: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)}

	sim := Open(ctx, Deps{Repository: repo, Logger: logging.Discard(), Clock: clock.Now})
	_, _, err := sim.Trades.Buy(ctx, decimal.NewFromInt(50), decimal.NewFromInt(25000))
	require.NoError(t, err)
	_, _, err = sim.Loans.Take(ctx, decimal.NewFromInt(200), 30)
	require.NoError(t, err)
	want := sim.Store.Snapshot()
	require.NoError(t, sim.Close(ctx))

	reopened := Open(ctx, Deps{Repository: repo, Logger: logging.Discard(), Clock: clock.Now})
	t.Cleanup(func() { _ = reopened.Close(ctx) })

	got := reopened.Store.Snapshot()
	assert.True(t, got.Equal(want))
	assert.True(t, got.USDBalance.Equal(decimal.NewFromInt(250)))
	require.Len(t, got.Transactions, 1)
	assert.True(t, reopened.Monitor.Active())
}

func TestFreshSessionStartsWithInitialBalance(t *testing.T) {
	ctx := context.Background()
	sim := Open(ctx, Deps{Logger: logging.Discard()})
	t.Cleanup(func() { _ = sim.Close(ctx) })

	p := sim.Store.Snapshot()
	assert.True(t, p.USDBalance.Equal(ledger.InitialUSDBalance))
	assert.True(t, p.BTCBalance.IsZero())
	assert.Empty(t, p.Transactions)
	assert.Nil(t, p.Loan)
	assert.False(t, sim.Monitor.Active())
}

func TestSessionMonitorPenalizesOverdueLoan(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{t: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)}
	notifier := &captureNotifier{}

	sim := Open(ctx, Deps{
		Logger:          logging.Discard(),
		Notifier:        notifier,
		Clock:           clock.Now,
		MonitorInterval: 5 * time.Millisecond,
	})
	t.Cleanup(func() { _ = sim.Close(ctx) })

	_, _, err := sim.Loans.Take(ctx, decimal.NewFromInt(100), 1)
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)

	assert.Eventually(t, func() bool {
		return sim.Store.Snapshot().Loan == nil
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, notifier.keys(), notification.KeyLoanPenalty)
}

func TestDisabledMonitorStillChecksOnDemand(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{t: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)}
	sim := Open(ctx, Deps{Logger: logging.Discard(), Clock: clock.Now, DisableMonitor: true})
	t.Cleanup(func() { _ = sim.Close(ctx) })

	_, _, err := sim.Loans.Take(ctx, decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	assert.False(t, sim.Monitor.Active())

	clock.Advance(72*time.Hour + time.Second)
	sim.Monitor.Check(ctx)
	assert.Nil(t, sim.Store.Snapshot().Loan)
}
