package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InitialUSDBalance is the virtual cash a brand new session starts with.
var InitialUSDBalance = decimal.NewFromInt(100)

// DefaultPortfolioKey is the record key used when a single session is persisted.
const DefaultPortfolioKey = "main"

// ErrNotFound is returned by a Repository that holds no saved state yet.
var ErrNotFound = errors.New("portfolio not found")

// RejectError is a validation rejection. It never changes state; the Key is
// the message key surfaced to the user.
type RejectError struct {
	Key    string
	Reason string
}

func (e *RejectError) Error() string { return e.Reason }

var (
	// ErrInvalidAmount rejects a non-positive amount where one is required.
	ErrInvalidAmount = &RejectError{Key: "notifications.invalidAmount", Reason: "amount must be positive"}
	// ErrPriceUnavailable rejects a trade without a usable market price.
	ErrPriceUnavailable = &RejectError{Key: "notifications.priceUnavailable", Reason: "market price unavailable"}
	// ErrInsufficientFunds rejects a debit larger than the USD balance.
	ErrInsufficientFunds = &RejectError{Key: "notifications.insufficientUsd", Reason: "insufficient funds"}
	// ErrInsufficientBTC rejects a sale larger than the BTC balance.
	ErrInsufficientBTC = &RejectError{Key: "notifications.insufficientBtc", Reason: "insufficient btc"}
	// ErrLoanActive rejects a second loan while one is outstanding.
	ErrLoanActive = &RejectError{Key: "notifications.loanActive", Reason: "a loan is already active"}
	// ErrLoanExceedsMax rejects a loan above the collateral limit.
	ErrLoanExceedsMax = &RejectError{Key: "notifications.loanExceedsMax", Reason: "loan exceeds maximum"}
	// ErrInvalidLoanTerm rejects a repayment period outside the allowed set.
	ErrInvalidLoanTerm = &RejectError{Key: "notifications.invalidLoanTerm", Reason: "unsupported repayment period"}
	// ErrInsufficientFundsForRepayment rejects a repayment the USD balance cannot cover.
	ErrInsufficientFundsForRepayment = &RejectError{Key: "notifications.insufficientUsdForRepayment", Reason: "insufficient funds to repay loan"}
)

// TransactionType is the direction of a trade.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Transaction is an immutable record of one executed trade.
type Transaction struct {
	ID                 string
	Type               TransactionType
	Date               time.Time
	BTCAmount          decimal.Decimal
	USDAmount          decimal.Decimal
	PriceAtTransaction decimal.Decimal
}

// Loan is the single outstanding collateralized loan.
type Loan struct {
	Principal           decimal.Decimal
	InterestRate        decimal.Decimal // APR captured at issuance
	LoanDate            time.Time
	DueDate             time.Time
	RepaymentPeriodDays int
}

// Portfolio is the canonical ledger state of a session.
type Portfolio struct {
	USDBalance   decimal.Decimal
	BTCBalance   decimal.Decimal
	Transactions []Transaction // newest first
	Loan         *Loan
}

// NewPortfolio returns the initial state of a session that has never been saved.
func NewPortfolio() Portfolio {
	return Portfolio{
		USDBalance:   InitialUSDBalance,
		BTCBalance:   decimal.Zero,
		Transactions: []Transaction{},
	}
}

// Clone returns a deep copy so a mutator can never alias committed state.
func (p Portfolio) Clone() Portfolio {
	out := p
	out.Transactions = make([]Transaction, len(p.Transactions))
	copy(out.Transactions, p.Transactions)
	if p.Loan != nil {
		loan := *p.Loan
		out.Loan = &loan
	}
	return out
}

// HasLoan reports whether a loan is active.
func (p Portfolio) HasLoan() bool { return p.Loan != nil }

// Valuation returns the USD value of the holdings at the given price.
func (p Portfolio) Valuation(price decimal.Decimal) decimal.Decimal {
	return p.USDBalance.Add(p.BTCBalance.Mul(price))
}

// Equal compares two portfolios value by value, comparing instants rather
// than time zone representations.
func (p Portfolio) Equal(q Portfolio) bool {
	if !p.USDBalance.Equal(q.USDBalance) || !p.BTCBalance.Equal(q.BTCBalance) {
		return false
	}
	if len(p.Transactions) != len(q.Transactions) {
		return false
	}
	for i := range p.Transactions {
		a, b := p.Transactions[i], q.Transactions[i]
		if a.ID != b.ID || a.Type != b.Type || !a.Date.Equal(b.Date) ||
			!a.BTCAmount.Equal(b.BTCAmount) || !a.USDAmount.Equal(b.USDAmount) ||
			!a.PriceAtTransaction.Equal(b.PriceAtTransaction) {
			return false
		}
	}
	if (p.Loan == nil) != (q.Loan == nil) {
		return false
	}
	if p.Loan == nil {
		return true
	}
	a, b := p.Loan, q.Loan
	return a.Principal.Equal(b.Principal) && a.InterestRate.Equal(b.InterestRate) &&
		a.LoanDate.Equal(b.LoanDate) && a.DueDate.Equal(b.DueDate) &&
		a.RepaymentPeriodDays == b.RepaymentPeriodDays
}

// Repository persists the portfolio of one session.
type Repository interface {
	// Load returns ErrNotFound when nothing has been saved yet.
	Load(ctx context.Context) (Portfolio, error)
	Save(ctx context.Context, p Portfolio) error
}
