package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/loan"
	"github.com/cryptosim/cryptosim/internal/logging"
	"github.com/cryptosim/cryptosim/internal/notification"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var start = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, interval time.Duration) (*Monitor, *ledger.Store, *clock) {
	t.Helper()
	store := ledger.NewStore(ledger.NewInMemory(), logging.Discard(), nil)
	c := &clock{t: start}
	m := New(store, loan.NewService(store, c.Now), logging.Discard(), WithInterval(interval), WithClock(c.Now))
	t.Cleanup(func() {
		m.Stop()
		_ = store.Close(context.Background())
	})
	return m, store, c
}

func sevenDayLoan(at time.Time) *ledger.Loan {
	return &ledger.Loan{
		Principal:           decimal.NewFromInt(500),
		InterestRate:        loan.APR,
		LoanDate:            at,
		DueDate:             at.AddDate(0, 0, 7),
		RepaymentPeriodDays: 7,
	}
}

func TestCheckWarnsOncePerLoan(t *testing.T) {
	m, store, c := setup(t, time.Hour)
	ctx := context.Background()
	ledger.SeedLoan(store, sevenDayLoan(start))

	c.Set(start.Add(6*24*time.Hour + time.Hour))
	m.Check(ctx)

	n := store.Notification()
	require.NotNil(t, n)
	assert.Equal(t, notification.KeyLoanDueSoon, n.MessageKey)
	assert.Equal(t, notification.SeverityWarning, n.Severity)
	assert.Equal(t, "501.73", n.Payload["amount"])

	store.ClearNotification()
	m.Check(ctx)
	assert.Nil(t, store.Notification())
	assert.NotNil(t, store.Snapshot().Loan)
}

func TestDueSoonWarningSkipsClearedLoan(t *testing.T) {
	_, store, _ := setup(t, time.Hour)
	ctx := context.Background()
	stale := *sevenDayLoan(start)

	// The loan is repaid after Check read it but before the warning commits.
	_, notice, err := store.Commit(ctx, dueSoonMutator(stale))
	require.NoError(t, err)
	assert.Nil(t, notice)
	assert.Nil(t, store.Notification())

	// A different loan instance does not receive the old loan's warning either.
	ledger.SeedLoan(store, sevenDayLoan(start.Add(time.Hour)))
	_, notice, err = store.Commit(ctx, dueSoonMutator(stale))
	require.NoError(t, err)
	assert.Nil(t, notice)
	assert.Nil(t, store.Notification())

	ledger.SeedLoan(store, &stale)
	_, notice, err = store.Commit(ctx, dueSoonMutator(stale))
	require.NoError(t, err)
	require.NotNil(t, notice)
	assert.Equal(t, notification.KeyLoanDueSoon, store.Notification().MessageKey)
	assert.True(t, store.Snapshot().Loan.LoanDate.Equal(stale.LoanDate))
}

func TestCheckQuietOutsideWindow(t *testing.T) {
	m, store, c := setup(t, time.Hour)
	ledger.SeedLoan(store, sevenDayLoan(start))

	c.Set(start.Add(5 * 24 * time.Hour))
	m.Check(context.Background())

	assert.Nil(t, store.Notification())
	assert.NotNil(t, store.Snapshot().Loan)
}

func TestCheckWithoutLoanDoesNothing(t *testing.T) {
	m, store, _ := setup(t, time.Hour)
	before := store.Snapshot()

	m.Check(context.Background())

	assert.Nil(t, store.Notification())
	assert.True(t, store.Snapshot().Equal(before))
}

func TestCheckPenalizesOverdueLoan(t *testing.T) {
	m, store, c := setup(t, time.Hour)
	ledger.SeedBalances(store, decimal.NewFromInt(600), decimal.Zero)
	ledger.SeedLoan(store, sevenDayLoan(start))

	c.Set(start.Add(7*24*time.Hour + time.Minute))
	m.Check(context.Background())

	p := store.Snapshot()
	assert.Nil(t, p.Loan)
	assert.True(t, p.USDBalance.Equal(decimal.RequireFromString("-27.16")), "balance %s", p.USDBalance)

	n := store.Notification()
	require.NotNil(t, n)
	assert.Equal(t, notification.KeyLoanPenalty, n.MessageKey)
	assert.Equal(t, notification.SeverityError, n.Severity)
}

func TestWarningResetsForNewLoan(t *testing.T) {
	m, store, c := setup(t, time.Hour)
	ctx := context.Background()

	ledger.SeedLoan(store, sevenDayLoan(start))
	c.Set(start.Add(6*24*time.Hour + time.Hour))
	m.Check(ctx)
	require.NotNil(t, store.Notification())

	store.ClearNotification()
	ledger.SeedLoan(store, nil)
	next := start.Add(time.Hour)
	ledger.SeedLoan(store, sevenDayLoan(next))
	c.Set(next.Add(6*24*time.Hour + time.Hour))
	m.Check(ctx)

	n := store.Notification()
	require.NotNil(t, n)
	assert.Equal(t, notification.KeyLoanDueSoon, n.MessageKey)
}

func TestPollingFollowsLoanLifecycle(t *testing.T) {
	m, store, _ := setup(t, time.Hour)
	m.Start(context.Background())

	assert.False(t, m.Active())

	ledger.SeedLoan(store, sevenDayLoan(start))
	assert.True(t, m.Active())

	ledger.SeedLoan(store, nil)
	assert.False(t, m.Active())
}

func TestStartPicksUpExistingLoan(t *testing.T) {
	m, store, _ := setup(t, time.Hour)
	ledger.SeedLoan(store, sevenDayLoan(start))
	assert.False(t, m.Active())

	m.Start(context.Background())
	assert.True(t, m.Active())

	m.Stop()
	assert.False(t, m.Active())
}

func TestPollingPenalizesAndStops(t *testing.T) {
	m, store, c := setup(t, 5*time.Millisecond)
	c.Set(start.Add(30 * 24 * time.Hour))
	m.Start(context.Background())

	ledger.SeedLoan(store, sevenDayLoan(start))

	assert.Eventually(t, func() bool {
		return store.Snapshot().Loan == nil
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return !m.Active()
	}, time.Second, 5*time.Millisecond)

	n := store.Notification()
	require.NotNil(t, n)
	assert.Equal(t, notification.KeyLoanPenalty, n.MessageKey)
}

func TestPollingStopsWithParentContext(t *testing.T) {
	m, store, _ := setup(t, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	ledger.SeedLoan(store, sevenDayLoan(start))

	cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("polling goroutine did not exit")
	}
}
