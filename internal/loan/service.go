package loan

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/money"
	"github.com/cryptosim/cryptosim/internal/notification"
)

// ErrNoLoan is returned by read-only queries when no loan is active.
var ErrNoLoan = errors.New("no active loan")

// Service issues, repays and penalizes the single loan of a ledger.
type Service struct {
	store *ledger.Store
	now   func() time.Time
}

// NewService builds a loan service. A nil clock defaults to time.Now.
func NewService(store *ledger.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Take borrows amount for periodDays and credits it to the USD balance.
func (s *Service) Take(ctx context.Context, amount decimal.Decimal, periodDays int) (ledger.Portfolio, *notification.Notification, error) {
	return s.store.Commit(ctx, TakeMutator(amount, periodDays, s.now))
}

// Repay settles the active loan with interest accrued up to now. Without a
// loan it does nothing.
func (s *Service) Repay(ctx context.Context) (ledger.Portfolio, *notification.Notification, error) {
	return s.store.Commit(ctx, RepayMutator(s.now))
}

// ApplyPenalty debits the overdue penalty and clears the active loan. It is
// driven by the lifecycle monitor, not by users.
func (s *Service) ApplyPenalty(ctx context.Context) (ledger.Portfolio, *notification.Notification, error) {
	return s.store.Commit(ctx, PenaltyMutator(nil))
}

// PenalizeOverdue applies the penalty only if, in the state it commits
// against, the loan is still active and past its due date.
func (s *Service) PenalizeOverdue(ctx context.Context) (ledger.Portfolio, *notification.Notification, error) {
	return s.store.Commit(ctx, PenaltyMutator(s.now))
}

// TakeMutator validates and applies a new loan against one snapshot.
func TakeMutator(amount decimal.Decimal, periodDays int, now func() time.Time) ledger.Mutator {
	return func(p ledger.Portfolio) (ledger.Change, error) {
		if p.Loan != nil {
			return ledger.Change{}, ledger.ErrLoanActive
		}
		if !ValidTerm(periodDays) {
			return ledger.Change{}, ledger.ErrInvalidLoanTerm
		}
		principal := money.RoundCurrency(amount)
		if !principal.IsPositive() {
			return ledger.Change{}, ledger.ErrInvalidAmount
		}
		maxLoan := MaxLoan(p.USDBalance)
		// The limit applies to the requested amount, before rounding.
		if exceedsMax(amount, maxLoan) {
			return ledger.Change{
				Notice: notification.Error(ledger.ErrLoanExceedsMax.Key, map[string]any{
					"max": maxLoan.StringFixed(money.CurrencyPlaces),
				}),
			}, ledger.ErrLoanExceedsMax
		}

		at := now().UTC()
		p.USDBalance = money.RoundCurrency(p.USDBalance.Add(principal))
		p.Loan = &ledger.Loan{
			Principal:           principal,
			InterestRate:        APR,
			LoanDate:            at,
			DueDate:             at.AddDate(0, 0, periodDays),
			RepaymentPeriodDays: periodDays,
		}

		return ledger.Change{
			Next: &p,
			Notice: notification.Success(notification.KeyLoanTaken, map[string]any{
				"amount": principal.StringFixed(money.CurrencyPlaces),
			}),
		}, nil
	}
}

// RepayMutator settles the active loan against one snapshot.
func RepayMutator(now func() time.Time) ledger.Mutator {
	return func(p ledger.Portfolio) (ledger.Change, error) {
		if p.Loan == nil {
			return ledger.Change{}, nil
		}
		total := RepaymentDue(*p.Loan, now())
		if money.CurrencyLess(p.USDBalance, total) {
			return ledger.Change{
				Notice: notification.Error(ledger.ErrInsufficientFundsForRepayment.Key, map[string]any{
					"amount": total.StringFixed(money.CurrencyPlaces),
				}),
			}, ledger.ErrInsufficientFundsForRepayment
		}

		p.USDBalance = money.RoundCurrency(p.USDBalance.Sub(total))
		p.Loan = nil

		return ledger.Change{
			Next: &p,
			Notice: notification.Success(notification.KeyLoanRepaid, map[string]any{
				"amount": total.StringFixed(money.CurrencyPlaces),
			}),
		}, nil
	}
}

// PenaltyMutator charges the overdue penalty against one snapshot. With a nil
// clock the penalty is unconditional; otherwise it only applies once the
// loan's due date has passed.
func PenaltyMutator(now func() time.Time) ledger.Mutator {
	return func(p ledger.Portfolio) (ledger.Change, error) {
		if p.Loan == nil {
			return ledger.Change{}, nil
		}
		if now != nil && !now().After(p.Loan.DueDate) {
			return ledger.Change{}, nil
		}

		penalty := Penalty(*p.Loan)
		// The only debit allowed to take the balance below zero.
		p.USDBalance = money.RoundCurrency(p.USDBalance.Sub(penalty))
		p.Loan = nil

		return ledger.Change{
			Next: &p,
			Notice: notification.Error(notification.KeyLoanPenalty, map[string]any{
				"amount": penalty.StringFixed(money.CurrencyPlaces),
			}),
		}, nil
	}
}

// Quote describes the active loan as of a moment in time.
type Quote struct {
	Principal       decimal.Decimal
	InterestRate    decimal.Decimal
	LoanDate        time.Time
	DueDate         time.Time
	PeriodDays      int
	AccruedInterest decimal.Decimal
	RepayNow        decimal.Decimal
	DueAtTerm       decimal.Decimal
	Penalty         decimal.Decimal
	Remaining       time.Duration
	Overdue         bool
	Affordable      bool
}

// Quote reports what the active loan costs right now.
func (s *Service) Quote() (Quote, error) {
	p := s.store.Snapshot()
	if p.Loan == nil {
		return Quote{}, ErrNoLoan
	}
	now := s.now()
	l := *p.Loan
	repay := RepaymentDue(l, now)
	return Quote{
		Principal:       l.Principal,
		InterestRate:    l.InterestRate,
		LoanDate:        l.LoanDate,
		DueDate:         l.DueDate,
		PeriodDays:      l.RepaymentPeriodDays,
		AccruedInterest: money.RoundCurrency(AccruedInterest(l, now)),
		RepayNow:        repay,
		DueAtTerm:       DueAtTerm(l),
		Penalty:         Penalty(l),
		Remaining:       l.DueDate.Sub(now),
		Overdue:         now.After(l.DueDate),
		Affordable:      !money.CurrencyLess(p.USDBalance, repay),
	}, nil
}

// Preview describes a prospective loan before it is taken.
type Preview struct {
	Amount         decimal.Decimal
	PeriodDays     int
	Interest       decimal.Decimal
	TotalRepayment decimal.Decimal
	Collateral     decimal.Decimal
	MaxLoan        decimal.Decimal
	ExceedsMax     bool
}

// Preview computes the cost of borrowing amount for periodDays at the
// current APR, and whether it fits under the collateral limit.
func (s *Service) Preview(amount decimal.Decimal, periodDays int) (Preview, error) {
	if !ValidTerm(periodDays) {
		return Preview{}, ledger.ErrInvalidLoanTerm
	}
	principal := money.RoundCurrency(amount)
	if !principal.IsPositive() {
		return Preview{}, ledger.ErrInvalidAmount
	}
	p := s.store.Snapshot()
	collateral := Collateral(p)
	maxLoan := MaxLoan(collateral)
	interest := InterestAtTerm(principal, APR, periodDays)
	return Preview{
		Amount:         principal,
		PeriodDays:     periodDays,
		Interest:       money.RoundCurrency(interest),
		TotalRepayment: money.RoundCurrency(principal.Add(interest)),
		Collateral:     money.RoundCurrency(collateral),
		MaxLoan:        maxLoan,
		ExceedsMax:     exceedsMax(amount, maxLoan),
	}, nil
}
