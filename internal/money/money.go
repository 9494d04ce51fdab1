package money

import "github.com/shopspring/decimal"

const (
	// CurrencyPlaces is the number of decimal places kept for USD amounts.
	CurrencyPlaces = 2
	// AssetPlaces is the number of decimal places kept for BTC quantities (1 satoshi).
	AssetPlaces = 8
)

// RoundCurrency rounds x to the nearest cent.
func RoundCurrency(x decimal.Decimal) decimal.Decimal {
	return x.Round(CurrencyPlaces)
}

// RoundAsset rounds x to the nearest 1e-8 unit.
func RoundAsset(x decimal.Decimal) decimal.Decimal {
	return x.Round(AssetPlaces)
}

// CurrencyLess reports whether a < b once both are rounded to the cent.
func CurrencyLess(a, b decimal.Decimal) bool {
	return RoundCurrency(a).LessThan(RoundCurrency(b))
}

// AssetLess reports whether a < b once both are rounded to 1e-8.
func AssetLess(a, b decimal.Decimal) bool {
	return RoundAsset(a).LessThan(RoundAsset(b))
}
