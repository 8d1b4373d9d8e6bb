package fx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LoansBot/loansbot/pkg/cache"
	"github.com/LoansBot/loansbot/pkg/logger"
)

type fakeSource struct {
	rates map[string]map[string]float64
	calls int
}

func (f *fakeSource) FetchRates(_ context.Context, source string) (map[string]float64, error) {
	f.calls++
	return f.rates[source], nil
}

func newTestConverter(source *fakeSource) (*Converter, cache.Cache) {
	store := cache.NewMemoryCache()
	log := logger.NewDefaultLogger()
	return NewConverter(store, source, 4*time.Hour, log), store
}

func TestConvertSameCurrency(t *testing.T) {
	source := &fakeSource{}
	converter, _ := newTestConverter(source)

	rate, err := converter.Convert(context.Background(), "USD", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
	assert.Zero(t, source.calls, "same-currency conversion must bypass the cache")
}

func TestConvertUnknownCurrency(t *testing.T) {
	converter, _ := newTestConverter(&fakeSource{})

	_, err := converter.Convert(context.Background(), "XYZ", "USD")
	assert.ErrorIs(t, err, ErrUnknownCurrency)

	_, err = converter.Convert(context.Background(), "USD", "XYZ")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestConvertFillsCacheOnce(t *testing.T) {
	source := &fakeSource{rates: map[string]map[string]float64{
		"USD": {"GBP": 0.8, "EUR": 0.9, "JPY": 110, "CAD": 1.3, "AUD": 1.5, "MXN": 17, "USD": 1},
	}}
	converter, _ := newTestConverter(source)
	ctx := context.Background()

	rate, err := converter.Convert(ctx, "USD", "GBP")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, rate, 1e-9)

	// Every pair from USD was cached by the single fill.
	_, err = converter.Convert(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestConvertEmbedsExponentDelta(t *testing.T) {
	// 1 USD = 110 JPY means one cent converts to 1.10 yen.
	source := &fakeSource{rates: map[string]map[string]float64{
		"USD": {"JPY": 110},
	}}
	converter, _ := newTestConverter(source)

	rate, err := converter.Convert(context.Background(), "USD", "JPY")
	require.NoError(t, err)
	assert.InDelta(t, 1.10, rate, 1e-9)
}

func TestConvertUsesReciprocal(t *testing.T) {
	source := &fakeSource{rates: map[string]map[string]float64{
		"USD": {"GBP": 0.8},
	}}
	converter, _ := newTestConverter(source)
	ctx := context.Background()

	_, err := converter.Convert(ctx, "USD", "GBP")
	require.NoError(t, err)
	require.Equal(t, 1, source.calls)

	// GBP→USD is derived from the cached USD→GBP rate with no new fetch.
	rate, err := converter.Convert(ctx, "GBP", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.InDelta(t, 1/0.8, rate, 1e-9)
}

func TestConvertRoundTrip(t *testing.T) {
	source := &fakeSource{rates: map[string]map[string]float64{
		"USD": {"CAD": 1.31},
		"CAD": {"USD": 1 / 1.31},
	}}
	converter, _ := newTestConverter(source)
	ctx := context.Background()

	forward, err := converter.Convert(ctx, "USD", "CAD")
	require.NoError(t, err)
	backward, err := converter.Convert(ctx, "CAD", "USD")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, forward*backward, 1e-9)
}
