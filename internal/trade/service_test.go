package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/logging"
	"github.com/cryptosim/cryptosim/internal/notification"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (*Service, *ledger.Store) {
	t.Helper()
	store := ledger.NewStore(ledger.NewInMemory(), logging.Discard(), nil)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return NewService(store, func() time.Time { return fixedNow }), store
}

func TestBuyScenario(t *testing.T) {
	svc, _ := newTestService(t)

	p, notice, err := svc.Buy(context.Background(), d("50"), d("25000"))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if !p.BTCBalance.Equal(d("0.002")) || !p.USDBalance.Equal(d("50")) {
		t.Fatalf("unexpected balances usd=%s btc=%s", p.USDBalance, p.BTCBalance)
	}
	if len(p.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(p.Transactions))
	}
	tx := p.Transactions[0]
	if tx.Type != ledger.TransactionBuy || !tx.USDAmount.Equal(d("50")) || !tx.PriceAtTransaction.Equal(d("25000")) || !tx.Date.Equal(fixedNow) {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if notice == nil || notice.MessageKey != notification.KeyBuySuccess || notice.Payload["amount"] != "0.00200000" {
		t.Fatalf("unexpected notification: %+v", notice)
	}
}

func TestBuyDebitsExactlyAndRoundsAsset(t *testing.T) {
	svc, _ := newTestService(t)

	p, _, err := svc.Buy(context.Background(), d("33.33"), d("61234.56"))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if !p.USDBalance.Equal(d("66.67")) {
		t.Fatalf("expected usd 66.67, got %s", p.USDBalance)
	}
	// 33.33 / 61234.56 = 0.000544300... -> 0.00054430
	if !p.BTCBalance.Equal(d("0.0005443")) {
		t.Fatalf("expected btc 0.0005443, got %s", p.BTCBalance)
	}
}

func TestBuyWholeBalanceDespiteFloatDrift(t *testing.T) {
	svc, store := newTestService(t)
	ledger.SeedBalances(store, decimal.NewFromFloat(0.1+0.2), decimal.Zero)

	p, _, err := svc.Buy(context.Background(), decimal.NewFromFloat(0.3), d("10"))
	if err != nil {
		t.Fatalf("expected buy of the whole balance to succeed: %v", err)
	}
	if !p.USDBalance.IsZero() {
		t.Fatalf("expected zero usd balance, got %s", p.USDBalance)
	}
}

func TestBuyInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	svc, store := newTestService(t)
	before := store.Snapshot()

	_, notice, err := svc.Buy(context.Background(), d("100.01"), d("25000"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if notice == nil || notice.Severity != notification.SeverityError {
		t.Fatalf("expected error notification, got %+v", notice)
	}
	if !store.Snapshot().Equal(before) {
		t.Fatalf("state mutated on rejection")
	}
}

func TestBuyNonPositiveAmountIsSilentNoOp(t *testing.T) {
	svc, store := newTestService(t)

	for _, amount := range []string{"0", "-5"} {
		_, notice, err := svc.Buy(context.Background(), d(amount), d("25000"))
		if err != nil || notice != nil {
			t.Fatalf("expected silent no-op for %s, got notice=%+v err=%v", amount, notice, err)
		}
	}
	if store.Notification() != nil {
		t.Fatalf("no-op must not touch the notification slot")
	}
	if len(store.Snapshot().Transactions) != 0 {
		t.Fatalf("no-op appended a transaction")
	}
}

func TestBuyWithoutPriceRejects(t *testing.T) {
	svc, _ := newTestService(t)

	if _, _, err := svc.Buy(context.Background(), d("10"), decimal.Zero); !errors.Is(err, ledger.ErrPriceUnavailable) {
		t.Fatalf("expected price unavailable, got %v", err)
	}
}

func TestSellRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Buy(ctx, d("50"), d("25000")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	p, notice, err := svc.Sell(ctx, d("0.001"), d("30000"))
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !p.BTCBalance.Equal(d("0.001")) || !p.USDBalance.Equal(d("80")) {
		t.Fatalf("unexpected balances usd=%s btc=%s", p.USDBalance, p.BTCBalance)
	}
	if len(p.Transactions) != 2 || p.Transactions[0].Type != ledger.TransactionSell {
		t.Fatalf("expected newest-first SELL transaction, got %+v", p.Transactions)
	}
	if !p.Transactions[0].USDAmount.Equal(d("30")) {
		t.Fatalf("expected sell usd leg 30, got %s", p.Transactions[0].USDAmount)
	}
	if notice.MessageKey != notification.KeySellSuccess || notice.Payload["amount"] != "0.00100000" {
		t.Fatalf("unexpected notification: %+v", notice)
	}
}

func TestSellInsufficientBTC(t *testing.T) {
	svc, store := newTestService(t)
	before := store.Snapshot()

	if _, _, err := svc.Sell(context.Background(), d("0.00000001"), d("25000")); !errors.Is(err, ledger.ErrInsufficientBTC) {
		t.Fatalf("expected insufficient btc, got %v", err)
	}
	if !store.Snapshot().Equal(before) {
		t.Fatalf("state mutated on rejection")
	}
}

func TestTransactionIDsAreUniqueWithinOneInstant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, _, err := svc.Buy(ctx, d("1"), d("100")); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
	}
	seen := map[string]bool{}
	for _, tx := range svc.History(0) {
		if seen[tx.ID] {
			t.Fatalf("duplicate transaction id %s", tx.ID)
		}
		seen[tx.ID] = true
	}
	if got := len(svc.History(2)); got != 2 {
		t.Fatalf("expected limited history of 2, got %d", got)
	}
}
