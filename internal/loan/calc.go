package loan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptosim/cryptosim/internal/ledger"
	"github.com/cryptosim/cryptosim/internal/money"
)

// AccruedInterest is simple interest on the principal for the real time
// elapsed since the loan was taken.
func AccruedInterest(l ledger.Loan, now time.Time) decimal.Decimal {
	elapsed := now.Sub(l.LoanDate)
	if elapsed <= 0 {
		return decimal.Zero
	}
	years := decimal.NewFromInt(int64(elapsed)).Div(yearLength)
	return l.Principal.Mul(l.InterestRate).Mul(years)
}

// RepaymentDue is what repaying at now costs: principal plus accrued interest,
// rounded to the cent.
func RepaymentDue(l ledger.Loan, now time.Time) decimal.Decimal {
	return money.RoundCurrency(l.Principal.Add(AccruedInterest(l, now)))
}

// InterestAtTerm is the interest owed over the nominal repayment period.
func InterestAtTerm(principal, rate decimal.Decimal, days int) decimal.Decimal {
	return principal.Mul(rate).Mul(decimal.NewFromInt(int64(days))).Div(daysPerYear)
}

// DueAtTerm is the scheduled repayment amount at the end of the nominal term.
func DueAtTerm(l ledger.Loan) decimal.Decimal {
	return money.RoundCurrency(l.Principal.Add(InterestAtTerm(l.Principal, l.InterestRate, l.RepaymentPeriodDays)))
}

// Penalty is the punitive debit charged when a loan goes overdue. It is based
// on the nominal term, not on how long the loan has been overdue.
func Penalty(l ledger.Loan) decimal.Decimal {
	return money.RoundCurrency(DueAtTerm(l).Mul(PenaltyMultiplier))
}

// MaxLoan is the largest loan the balance supports.
func MaxLoan(usdBalance decimal.Decimal) decimal.Decimal {
	return money.RoundCurrency(usdBalance.Mul(MaxLoanMultiplier))
}

// exceedsMax reports whether amount is above maxLoan plus the rounding tolerance.
func exceedsMax(amount, maxLoan decimal.Decimal) bool {
	return amount.GreaterThan(maxLoan.Add(MaxLoanTolerance))
}

// Collateral is the USD a user owns outright: the balance minus any borrowed principal.
func Collateral(p ledger.Portfolio) decimal.Decimal {
	if p.Loan == nil {
		return p.USDBalance
	}
	return p.USDBalance.Sub(p.Loan.Principal)
}
