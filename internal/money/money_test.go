package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMajorStr(t *testing.T) {
	assert.Equal(t, "1.00", New(100, "USD").MajorStr())
	assert.Equal(t, "10.50", New(1050, "GBP").MajorStr())
	assert.Equal(t, "0.07", New(7, "EUR").MajorStr())
	assert.Equal(t, "320", New(320, "JPY").MajorStr())
}

func TestString(t *testing.T) {
	assert.Equal(t, "10.00 USD", New(1000, "USD").String())
	assert.Equal(t, "$10.00", New(1000, "USD").Displayed().String())
	assert.Equal(t, "£15.00", New(1500, "GBP").Displayed().String())
	assert.Equal(t, "500 JPY", New(500, "JPY").Displayed().String())

	right := Money{Minor: 1000, Currency: "USD", Exp: 2, Symbol: "$", SymbolOnLeft: false}
	assert.Equal(t, "10.00$", right.String())
}

func TestEqual(t *testing.T) {
	assert.True(t, New(100, "USD").Equal(New(100, "USD").Displayed()))
	assert.False(t, New(100, "USD").Equal(New(100, "CAD")))
	assert.False(t, New(100, "USD").Equal(New(101, "USD")))
}

func TestSymbolFor(t *testing.T) {
	symbol, onLeft := SymbolFor("USD")
	assert.Equal(t, "$", symbol)
	assert.True(t, onLeft)

	symbol, _ = SymbolFor("JPY")
	assert.Equal(t, "", symbol)
}
