// Package money describes monetary amounts in the most granular unit of a
// given currency.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencySymbols maps common non-contentious currency symbols for our
// audience to their ISO 4217 code. Even these are ambiguous; we prefer
// people use ISO codes.
var CurrencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// ISOCodesToExp maps each supported ISO 4217 code to its minor currency
// exponent. JPY has no decimal place.
var ISOCodesToExp = map[string]int{
	"AUD": 2,
	"GBP": 2,
	"EUR": 2,
	"CAD": 2,
	"JPY": 0,
	"MXN": 2,
	"USD": 2,
}

// SymbolFor returns the display symbol for a currency code and whether the
// symbol goes on the left of the quantity.
func SymbolFor(currency string) (symbol string, onLeft bool) {
	for sym, code := range CurrencySymbols {
		if code == currency {
			return sym, true
		}
	}
	return "", false
}

// Money is a monetary amount in minor units of a currency.
type Money struct {
	// Minor is the number of minor currency units
	Minor int64 `json:"minor"`
	// Currency is the uppercased ISO 4217 currency code
	Currency string `json:"currency"`
	// Exp is the exponent for this currency
	Exp int `json:"exp"`
	// Symbol is a shorter alternative to the ISO code, if there is one
	Symbol string `json:"symbol,omitempty"`
	// SymbolOnLeft is true if the symbol goes left of the quantity
	SymbolOnLeft bool `json:"symbol_on_left"`
}

// New builds a Money in the given currency, resolving the exponent from the
// supported-currency table. No display symbol is attached; that comes from
// the currency row when formatting replies.
func New(minor int64, currency string) Money {
	exp, ok := ISOCodesToExp[currency]
	if !ok {
		exp = 2
	}
	return Money{
		Minor:    minor,
		Currency: currency,
		Exp:      exp,
	}
}

// Displayed returns a copy with the display symbol resolved from the
// supported-currency tables.
func (m Money) Displayed() Money {
	m.Symbol, m.SymbolOnLeft = SymbolFor(m.Currency)
	return m
}

// MajorStr formats the amount in the major currency unit, with exactly Exp
// fractional digits. 100 minor USD becomes "1.00".
func (m Money) MajorStr() string {
	if m.Exp == 0 {
		return fmt.Sprintf("%d", m.Minor)
	}
	return decimal.New(m.Minor, -int32(m.Exp)).StringFixed(int32(m.Exp))
}

// String renders the amount with its symbol when one is known, otherwise
// as "<major> <ISO>".
func (m Money) String() string {
	if m.Symbol == "" {
		return fmt.Sprintf("%s %s", m.MajorStr(), m.Currency)
	}
	if m.SymbolOnLeft {
		return m.Symbol + m.MajorStr()
	}
	return m.MajorStr() + m.Symbol
}

// Equal reports whether two amounts have the same minor value and currency.
// Display attributes are ignored.
func (m Money) Equal(other Money) bool {
	return m.Minor == other.Minor && m.Currency == other.Currency
}
