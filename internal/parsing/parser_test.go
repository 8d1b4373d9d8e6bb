package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserNoAnchor(t *testing.T) {
	parser := NewParser([]string{"$ping"}, nil)

	_, ok := parser.Parse("nothing interesting here")
	assert.False(t, ok)
}

func TestParserAnchorOnly(t *testing.T) {
	parser := NewParser([]string{"$ping"}, nil)

	values, ok := parser.Parse("hello $ping world")
	require.True(t, ok)
	assert.Empty(t, values)
}

func TestParserResumesAfterFailedAnchorMatch(t *testing.T) {
	parser := NewParser([]string{"$paid"}, []TokenSpec{
		{Token: NewUintToken()},
	})

	// The first $paid is not followed by an integer, but the second is;
	// the parser resumes the anchor search past the failed match.
	values, ok := parser.Parse("$paid nope then $paid 42")
	require.True(t, ok)
	require.Len(t, values, 1)
	assert.Equal(t, int64(42), values[0])
}

func TestParserOptionalTokenRecordsNil(t *testing.T) {
	parser := NewParser([]string{"$loan"}, []TokenSpec{
		{Token: NewMoneyToken()},
		{Token: NewAsCurrencyToken(), Optional: true},
	})

	values, ok := parser.Parse("$loan 10")
	require.True(t, ok)
	require.Len(t, values, 2)
	assert.NotNil(t, values[0])
	assert.Nil(t, values[1])
}

func TestParserEarliestAnchorWins(t *testing.T) {
	parser := NewParser([]string{"$paid_with_id", `$paid\_with\_id`}, []TokenSpec{
		{Token: NewUintToken()},
	})

	values, ok := parser.Parse(`please $paid\_with\_id 7 then $paid_with_id 9`)
	require.True(t, ok)
	assert.Equal(t, int64(7), values[0])
}

func TestParserAnchorAtEndOfText(t *testing.T) {
	parser := NewParser([]string{"$check"}, []TokenSpec{
		{Token: NewUserToken()},
	})

	_, ok := parser.Parse("$check")
	assert.False(t, ok)
}

func TestParserIsPure(t *testing.T) {
	parser := NewParser([]string{"$paid"}, []TokenSpec{
		{Token: NewUserToken()},
		{Token: NewMoneyToken()},
	})

	body := "$paid /u/someone $10"
	first, ok := parser.Parse(body)
	require.True(t, ok)
	second, ok := parser.Parse(body)
	require.True(t, ok)
	assert.Equal(t, first, second)
}
