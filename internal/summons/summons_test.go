package summons

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LoansBot/loansbot/internal/money"
	"github.com/LoansBot/loansbot/internal/redditproxy"
)

func comment(body string) *redditproxy.Comment {
	return &redditproxy.Comment{
		Fullname:     "t1_abc",
		Body:         body,
		Author:       "lender",
		LinkFullname: "t3_def",
		LinkAuthor:   "borrower",
		Subreddit:    "borrow",
	}
}

func TestRegistryOrder(t *testing.T) {
	names := make([]string, 0)
	for _, summon := range Registry() {
		names = append(names, summon.Name())
	}
	assert.Equal(t, []string{
		"check", "confirm", "loan", "paid_with_id", "paid", "ping", "unpaid",
	}, names)
}

func TestPingMightApply(t *testing.T) {
	summon := NewPingSummon()

	assert.True(t, summon.MightApply(comment("hey $ping there")))
	assert.False(t, summon.MightApply(comment("no summons here")))
}

func TestCheckMightApply(t *testing.T) {
	summon := NewCheckSummon()

	assert.True(t, summon.MightApply(comment("$check /u/someone")))
	assert.True(t, summon.MightApply(comment("$check u/someone")))
	assert.False(t, summon.MightApply(comment("$check")))
	assert.False(t, summon.MightApply(comment("check /u/someone")))
}

func TestLoanParsing(t *testing.T) {
	summon := NewLoanSummon()

	assert.True(t, summon.MightApply(comment("$loan $100")))
	assert.True(t, summon.MightApply(comment("$loan 5 EUR as JPY")))
	assert.False(t, summon.MightApply(comment("$loan sometime soon")))

	values, ok := summon.parser.Parse("$loan 5 EUR AS JPY")
	require.True(t, ok)
	assert.Equal(t, money.New(500, "EUR"), values[0])
	assert.Equal(t, "JPY", values[1])

	values, ok = summon.parser.Parse("$loan $100")
	require.True(t, ok)
	assert.Equal(t, money.New(10000, "USD"), values[0])
	assert.Nil(t, values[1])
}

func TestPaidParsing(t *testing.T) {
	summon := NewPaidSummon()

	values, ok := summon.parser.Parse("$paid /u/borrower $20")
	require.True(t, ok)
	assert.Equal(t, "borrower", values[0])
	assert.Equal(t, money.New(2000, "USD"), values[1])

	_, ok = summon.parser.Parse("$paid /u/borrower")
	assert.False(t, ok)
}

func TestPaidWithIDParsing(t *testing.T) {
	summon := NewPaidWithIDSummon()

	values, ok := summon.parser.Parse("$paid_with_id 42 $20")
	require.True(t, ok)
	assert.Equal(t, int64(42), values[0])
	assert.Equal(t, money.New(2000, "USD"), values[1])

	// The markdown-escaped alias is equivalent.
	values, ok = summon.parser.Parse(`$paid\_with\_id 42 $20`)
	require.True(t, ok)
	assert.Equal(t, int64(42), values[0])
}

func TestUnpaidParsing(t *testing.T) {
	summon := NewUnpaidSummon()

	values, ok := summon.parser.Parse("$unpaid /u/deadbeat")
	require.True(t, ok)
	assert.Equal(t, "deadbeat", values[0])

	_, ok = summon.parser.Parse("$unpaid")
	assert.False(t, ok)
}

func TestConfirmParsing(t *testing.T) {
	summon := NewConfirmSummon()

	values, ok := summon.parser.Parse("$confirm /u/lender 10000 JPY")
	require.True(t, ok)
	assert.Equal(t, "lender", values[0])
	assert.Equal(t, money.New(10000, "JPY"), values[1])
}
