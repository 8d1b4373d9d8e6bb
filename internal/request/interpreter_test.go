package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretTitleWithoutBlobs(t *testing.T) {
	result := Interpret("[REQ] need some help")

	assert.Empty(t, result.Location)
	assert.Empty(t, result.Terms)
	assert.Empty(t, result.Processor)
	assert.Empty(t, result.Notes)
}

func TestInterpretLocationWithCityStateCountry(t *testing.T) {
	result := Interpret("[REQ] (#Austin, TX, USA) ($100) (repay 5/1) (paypal)")

	assert.Equal(t, "Austin, TX, USA", result.Location)
	assert.Equal(t, "Austin", result.City)
	assert.Equal(t, "TX", result.State)
	assert.Equal(t, "USA", result.Country)
}

func TestInterpretLocationWithoutThreeParts(t *testing.T) {
	result := Interpret("[REQ] (#London) ($50)")

	assert.Equal(t, "London", result.Location)
	assert.Empty(t, result.City)
	assert.Empty(t, result.State)
	assert.Empty(t, result.Country)
}

func TestInterpretTermsBySymbol(t *testing.T) {
	result := Interpret("[REQ] ($100 by friday)")
	assert.Equal(t, "$100 by friday", result.Terms)
}

func TestInterpretTermsByISOCode(t *testing.T) {
	result := Interpret("[REQ] (100 eur, repay 120)")
	assert.Equal(t, "100 eur, repay 120", result.Terms)
}

func TestInterpretTermsByDateFraction(t *testing.T) {
	result := Interpret("[REQ] (5/1 repayment)")
	assert.Equal(t, "5/1 repayment", result.Terms)
}

func TestInterpretProcessor(t *testing.T) {
	result := Interpret("[REQ] ($20) (Venmo or CashApp)")

	assert.Equal(t, "$20", result.Terms)
	assert.Equal(t, "Venmo or CashApp", result.Processor)
}

func TestInterpretNotes(t *testing.T) {
	result := Interpret("[REQ] (#NYC, NY, USA) ($75) (zelle) (student, first loan)")

	assert.Equal(t, []string{"student, first loan"}, result.Notes)
}

func TestInterpretFirstMatchWinsPerCategory(t *testing.T) {
	result := Interpret("[REQ] ($10) ($20)")

	assert.Equal(t, "$10", result.Terms)
	// The second money-looking blob cannot be terms again; it is not a
	// processor either, so it lands in the notes.
	assert.Equal(t, []string{"$20"}, result.Notes)
}
