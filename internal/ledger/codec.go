package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StoredPortfolio is the persisted layout: timestamps are ISO-8601 strings.
type StoredPortfolio struct {
	USDBalance   decimal.Decimal     `json:"usdBalance"`
	BTCBalance   decimal.Decimal     `json:"btcBalance"`
	Transactions []StoredTransaction `json:"transactions"`
	Loan         *StoredLoan         `json:"loan"`
}

// StoredTransaction is the persisted form of a Transaction.
type StoredTransaction struct {
	ID                 string          `json:"id"`
	Type               TransactionType `json:"type"`
	Date               string          `json:"date"`
	BTCAmount          decimal.Decimal `json:"btcAmount"`
	USDAmount          decimal.Decimal `json:"usdAmount"`
	PriceAtTransaction decimal.Decimal `json:"priceAtTransaction"`
}

// StoredLoan is the persisted form of a Loan.
type StoredLoan struct {
	Principal           decimal.Decimal `json:"principal"`
	InterestRate        decimal.Decimal `json:"interestRate"`
	LoanDate            string          `json:"loanDate"`
	DueDate             string          `json:"dueDate"`
	RepaymentPeriodDays int             `json:"repaymentPeriodDays"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return t.UTC(), nil
}

// ToStored converts a Portfolio to its persisted layout.
func ToStored(p Portfolio) StoredPortfolio {
	out := StoredPortfolio{
		USDBalance:   p.USDBalance,
		BTCBalance:   p.BTCBalance,
		Transactions: make([]StoredTransaction, 0, len(p.Transactions)),
	}
	for _, tx := range p.Transactions {
		out.Transactions = append(out.Transactions, StoredTransaction{
			ID:                 tx.ID,
			Type:               tx.Type,
			Date:               formatTime(tx.Date),
			BTCAmount:          tx.BTCAmount,
			USDAmount:          tx.USDAmount,
			PriceAtTransaction: tx.PriceAtTransaction,
		})
	}
	if p.Loan != nil {
		out.Loan = &StoredLoan{
			Principal:           p.Loan.Principal,
			InterestRate:        p.Loan.InterestRate,
			LoanDate:            formatTime(p.Loan.LoanDate),
			DueDate:             formatTime(p.Loan.DueDate),
			RepaymentPeriodDays: p.Loan.RepaymentPeriodDays,
		}
	}
	return out
}

// FromStored reconstructs a Portfolio, parsing timestamps back into time values.
func FromStored(s StoredPortfolio) (Portfolio, error) {
	out := Portfolio{
		USDBalance:   s.USDBalance,
		BTCBalance:   s.BTCBalance,
		Transactions: make([]Transaction, 0, len(s.Transactions)),
	}
	for i, tx := range s.Transactions {
		date, err := parseTime(fmt.Sprintf("transactions[%d].date", i), tx.Date)
		if err != nil {
			return Portfolio{}, err
		}
		out.Transactions = append(out.Transactions, Transaction{
			ID:                 tx.ID,
			Type:               tx.Type,
			Date:               date,
			BTCAmount:          tx.BTCAmount,
			USDAmount:          tx.USDAmount,
			PriceAtTransaction: tx.PriceAtTransaction,
		})
	}
	if s.Loan != nil {
		loanDate, err := parseTime("loan.loanDate", s.Loan.LoanDate)
		if err != nil {
			return Portfolio{}, err
		}
		dueDate, err := parseTime("loan.dueDate", s.Loan.DueDate)
		if err != nil {
			return Portfolio{}, err
		}
		out.Loan = &Loan{
			Principal:           s.Loan.Principal,
			InterestRate:        s.Loan.InterestRate,
			LoanDate:            loanDate,
			DueDate:             dueDate,
			RepaymentPeriodDays: s.Loan.RepaymentPeriodDays,
		}
	}
	return out, nil
}

// Encode serializes a Portfolio to its persisted JSON document.
func Encode(p Portfolio) ([]byte, error) {
	doc, err := json.Marshal(ToStored(p))
	if err != nil {
		return nil, fmt.Errorf("encode portfolio: %w", err)
	}
	return doc, nil
}

// Decode parses a persisted JSON document.
func Decode(doc []byte) (Portfolio, error) {
	var stored StoredPortfolio
	if err := json.Unmarshal(doc, &stored); err != nil {
		return Portfolio{}, fmt.Errorf("decode portfolio: %w", err)
	}
	return FromStored(stored)
}
