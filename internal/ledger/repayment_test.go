package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitRepaymentSameCurrencyPartial(t *testing.T) {
	// $50.00 principal, nothing repaid, $20.00 given.
	split := splitRepayment(5000, 0, 2000, true, 1, 1)

	assert.Equal(t, int64(2000), split.AppliedMinor)
	assert.Equal(t, int64(2000), split.AppliedUSD)
	assert.Equal(t, int64(0), split.RemainingMinor)
}

func TestSplitRepaymentSameCurrencyOverpay(t *testing.T) {
	// $10.00 open on the loan, $25.00 given; the excess rolls over.
	split := splitRepayment(5000, 4000, 2500, true, 1, 1)

	assert.Equal(t, int64(1000), split.AppliedMinor)
	assert.Equal(t, int64(1500), split.RemainingMinor)
}

func TestSplitRepaymentCrossCurrency(t *testing.T) {
	// Loan is 10000 JPY with a frozen rate of 100 JPY per USD (so the
	// principal's USD reference is 10000/1.0... rateLoanToUSD is in minor
	// units: 10000 JPY = 10000 USD cents means rate 1.0). 5000 JPY open;
	// 30.00 USD given at 1 cent -> 1.1 yen.
	split := splitRepayment(10000, 5000, 3000, false, 1.1, 1.0)

	// ceil(3000 * 1.1) = 3300 yen, all of which fits in the open 5000.
	assert.Equal(t, int64(3300), split.AppliedMinor)
	assert.Equal(t, int64(3300), split.AppliedUSD)
	assert.Equal(t, int64(0), split.RemainingMinor)
}

func TestSplitRepaymentCrossCurrencyOverpay(t *testing.T) {
	// 1000 yen open; 20.00 USD given at 1 cent -> 1.1 yen. Only part of
	// the given amount applies; the remainder is in the given currency.
	split := splitRepayment(10000, 9000, 2000, false, 1.1, 1.0)

	assert.Equal(t, int64(1000), split.AppliedMinor)
	// ceil(1000 / 1.1) = 910 cents applied in the given currency.
	assert.Equal(t, int64(2000-910), split.RemainingMinor)
}

func TestSplitRepaymentUSDUsesFrozenRate(t *testing.T) {
	// A GBP loan whose principal of 8000 pence was recorded as 10000 USD
	// cents freezes rate 0.8 pence per cent. Applying 4000 pence must use
	// that same rate: ceil(4000 / 0.8) = 5000 cents.
	split := splitRepayment(8000, 0, 4000, true, 1, 0.8)

	assert.Equal(t, int64(4000), split.AppliedMinor)
	assert.Equal(t, int64(5000), split.AppliedUSD)
}

func TestSplitRepaymentNeverNegativeRemainder(t *testing.T) {
	split := splitRepayment(100, 0, 1, false, 150.0, 1.0)

	// ceil(1 * 150) = 150 > 100 open, so 100 applies; converting the
	// applied amount back (ceil(100/150) = 1) consumes the whole given
	// amount.
	assert.Equal(t, int64(100), split.AppliedMinor)
	assert.Equal(t, int64(0), split.RemainingMinor)
}
