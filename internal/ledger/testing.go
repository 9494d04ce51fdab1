package ledger

import "github.com/shopspring/decimal"

// SeedBalances is a test helper that overwrites the balances held by a store.
func SeedBalances(s *Store, usd, btc decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.USDBalance = usd
	s.state.BTCBalance = btc
}

// SeedLoan is a test helper that installs a loan on a store without going
// through the loan engine.
func SeedLoan(s *Store, loan *Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loan == nil {
		s.state.Loan = nil
	} else {
		l := *loan
		s.state.Loan = &l
	}
	s.notifyObserversLocked()
}
