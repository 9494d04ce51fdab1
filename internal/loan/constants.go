package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	// APR is the fixed annual interest rate applied to every new loan.
	APR = decimal.RequireFromString("0.18")
	// MaxLoanMultiplier bounds a loan to this multiple of the USD balance.
	MaxLoanMultiplier = decimal.NewFromInt(10)
	// MaxLoanTolerance absorbs rounding when a loan sits exactly at the limit.
	MaxLoanTolerance = decimal.RequireFromString("0.01")
	// PenaltyMultiplier is applied to the amount due at term when a loan goes overdue.
	PenaltyMultiplier = decimal.RequireFromString("1.25")

	daysPerYear = decimal.NewFromInt(365)
	yearLength  = decimal.NewFromInt(int64(365 * 24 * time.Hour))
)

// Terms lists the allowed repayment periods, in days.
var Terms = []int{1, 3, 7, 30}

// ValidTerm reports whether days is an allowed repayment period.
func ValidTerm(days int) bool {
	for _, t := range Terms {
		if t == days {
			return true
		}
	}
	return false
}
