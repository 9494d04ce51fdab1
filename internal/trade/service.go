package trade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptosim/cryptosim/internal/id"
	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/money"
	"github.com/cryptosim/cryptosim/internal/notification"
)

const currencyBTC = "BTC"

// Service executes buy and sell orders against the ledger at a price supplied
// by the caller.
type Service struct {
	store *ledger.Store
	now   func() time.Time
}

// NewService builds a trade service. A nil clock defaults to time.Now.
func NewService(store *ledger.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Buy spends usdAmount on BTC at price. A non-positive amount is ignored.
func (s *Service) Buy(ctx context.Context, usdAmount, price decimal.Decimal) (ledger.Portfolio, *notification.Notification, error) {
	if !usdAmount.IsPositive() {
		return s.store.Snapshot(), nil, nil
	}
	return s.store.Commit(ctx, BuyMutator(usdAmount, price, s.now))
}

// Sell converts btcAmount to USD at price. A non-positive amount is ignored.
func (s *Service) Sell(ctx context.Context, btcAmount, price decimal.Decimal) (ledger.Portfolio, *notification.Notification, error) {
	if !btcAmount.IsPositive() {
		return s.store.Snapshot(), nil, nil
	}
	return s.store.Commit(ctx, SellMutator(btcAmount, price, s.now))
}

// BuyMutator validates and applies a buy against one snapshot of the ledger.
func BuyMutator(usdAmount, price decimal.Decimal, now func() time.Time) ledger.Mutator {
	return func(p ledger.Portfolio) (ledger.Change, error) {
		if !price.IsPositive() {
			return ledger.Change{}, ledger.ErrPriceUnavailable
		}
		usd := money.RoundCurrency(usdAmount)
		if !usd.IsPositive() {
			return ledger.Change{}, ledger.ErrInvalidAmount
		}
		if money.CurrencyLess(p.USDBalance, usd) {
			return ledger.Change{}, ledger.ErrInsufficientFunds
		}

		btc := money.RoundAsset(usd.Div(price))
		if !btc.IsPositive() {
			return ledger.Change{}, ledger.ErrInvalidAmount
		}

		at := now().UTC()
		p.USDBalance = money.RoundCurrency(p.USDBalance.Sub(usd))
		p.BTCBalance = money.RoundAsset(p.BTCBalance.Add(btc))
		p.Transactions = prepend(p.Transactions, ledger.Transaction{
			ID:                 id.New(at),
			Type:               ledger.TransactionBuy,
			Date:               at,
			BTCAmount:          btc,
			USDAmount:          usd,
			PriceAtTransaction: price,
		})

		return ledger.Change{
			Next: &p,
			Notice: notification.Success(notification.KeyBuySuccess, map[string]any{
				"amount":   btc.StringFixed(money.AssetPlaces),
				"currency": currencyBTC,
			}),
		}, nil
	}
}

// SellMutator validates and applies a sell against one snapshot of the ledger.
func SellMutator(btcAmount, price decimal.Decimal, now func() time.Time) ledger.Mutator {
	return func(p ledger.Portfolio) (ledger.Change, error) {
		if !price.IsPositive() {
			return ledger.Change{}, ledger.ErrPriceUnavailable
		}
		btc := money.RoundAsset(btcAmount)
		if !btc.IsPositive() {
			return ledger.Change{}, ledger.ErrInvalidAmount
		}
		if money.AssetLess(p.BTCBalance, btc) {
			return ledger.Change{}, ledger.ErrInsufficientBTC
		}

		usd := money.RoundCurrency(btc.Mul(price))

		at := now().UTC()
		p.BTCBalance = money.RoundAsset(p.BTCBalance.Sub(btc))
		p.USDBalance = money.RoundCurrency(p.USDBalance.Add(usd))
		p.Transactions = prepend(p.Transactions, ledger.Transaction{
			ID:                 id.New(at),
			Type:               ledger.TransactionSell,
			Date:               at,
			BTCAmount:          btc,
			USDAmount:          usd,
			PriceAtTransaction: price,
		})

		return ledger.Change{
			Next: &p,
			Notice: notification.Success(notification.KeySellSuccess, map[string]any{
				"amount":   btc.StringFixed(money.AssetPlaces),
				"currency": currencyBTC,
			}),
		}, nil
	}
}

// History returns up to limit transactions, newest first. A non-positive
// limit returns all of them.
func (s *Service) History(limit int) []ledger.Transaction {
	txs := s.store.Snapshot().Transactions
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return txs
}

func prepend(txs []ledger.Transaction, tx ledger.Transaction) []ledger.Transaction {
	out := make([]ledger.Transaction, 0, len(txs)+1)
	out = append(out, tx)
	return append(out, txs...)
}
