package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LoansBot/loansbot/internal/money"
)

func parseUser(t *testing.T, text string) (string, bool) {
	t.Helper()
	_, value, ok := NewUserToken().Consume(text, 0)
	if !ok {
		return "", false
	}
	return value.(string), true
}

func TestUserToken(t *testing.T) {
	tests := []struct {
		text     string
		expected string
		ok       bool
	}{
		{"/u/johndoe", "johndoe", true},
		{"u/johndoe", "johndoe", true},
		{" /u/john_doe ", "john_doe", true},
		{"/u/john-doe", "john-doe", true},
		{"[/u/johndoe](https://reddit.com/u/johndoe)", "johndoe", true},
		{"[u/johndoe](https://reddit.com/user/johndoe)", "johndoe", true},
		{"[johndoe](http://reddit.com/u/johndoe?context=3)", "johndoe", true},
		{"[johndoe](https://reddit.com/u/johndoe#history)", "johndoe", true},
		{"[johndoe](https://reddit.com/u/someoneelse)", "", false},
		{"not a user", "", false},
	}

	for _, tt := range tests {
		value, ok := parseUser(t, tt.text)
		assert.Equal(t, tt.ok, ok, "text=%q", tt.text)
		if tt.ok {
			assert.Equal(t, tt.expected, value, "text=%q", tt.text)
		}
	}
}

func parseMoney(t *testing.T, text string) (money.Money, bool) {
	t.Helper()
	_, value, ok := NewMoneyToken().Consume(text, 0)
	if !ok {
		return money.Money{}, false
	}
	return value.(money.Money), true
}

func TestMoneyToken(t *testing.T) {
	tests := []struct {
		text     string
		minor    int64
		currency string
	}{
		{"$10", 1000, "USD"},
		{"10$", 1000, "USD"},
		{"USD 10", 1000, "USD"},
		{"10 USD", 1000, "USD"},
		{"10.00", 1000, "USD"},
		{"$10.12 CAD", 1012, "CAD"},
		{"£15", 1500, "GBP"},
		{"€7.50", 750, "EUR"},
		{"5.50", 550, "USD"},
		{"JPY 32", 32, "JPY"},
		{"10000 JPY", 10000, "JPY"},
	}

	for _, tt := range tests {
		value, ok := parseMoney(t, tt.text)
		require.True(t, ok, "text=%q", tt.text)
		assert.Equal(t, tt.minor, value.Minor, "text=%q", tt.text)
		assert.Equal(t, tt.currency, value.Currency, "text=%q", tt.text)
	}
}

func TestMoneyTokenRejectsWrongFractionLength(t *testing.T) {
	// USD has two fractional digits; one is not a valid amount.
	_, ok := parseMoney(t, "$10.5")
	assert.False(t, ok)

	// JPY has no minor unit at all.
	_, ok = parseMoney(t, "10.00 JPY")
	assert.False(t, ok)
}

func TestMoneyTokenRejectsThousandsSeparators(t *testing.T) {
	// The numeral grammar does not accept comma grouping; $1,000 parses
	// as $1 and the rest is left unconsumed.
	consumed, value, ok := NewMoneyToken().Consume("$1,000", 0)
	require.True(t, ok)
	assert.Equal(t, int64(100), value.(money.Money).Minor)
	assert.Equal(t, len("$1"), consumed)
}

func TestAsCurrencyToken(t *testing.T) {
	token := NewAsCurrencyToken()

	_, value, ok := token.Consume(" as JPY", 0)
	require.True(t, ok)
	assert.Equal(t, "JPY", value)

	_, value, ok = token.Consume(" AS eur", 0)
	assert.False(t, ok)
	assert.Nil(t, value)

	_, value, ok = token.Consume(" AS EUR ", 0)
	require.True(t, ok)
	assert.Equal(t, "EUR", value)
}

func TestUintToken(t *testing.T) {
	token := NewUintToken()

	consumed, value, ok := token.Consume(" 42 tail", 0)
	require.True(t, ok)
	assert.Equal(t, int64(42), value)
	assert.Equal(t, len(" 42 "), consumed)

	_, _, ok = token.Consume("nope", 0)
	assert.False(t, ok)
}
