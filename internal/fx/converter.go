package fx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/LoansBot/loansbot/internal/money"
	"github.com/LoansBot/loansbot/pkg/cache"
	"github.com/LoansBot/loansbot/pkg/logger"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "loansbot/convert"

// ErrUnknownCurrency is returned when a currency code is not supported.
var ErrUnknownCurrency = errors.New("fx: not a supported 3-letter iso code")

// RateSource retrieves the conversion rate from a source currency to every
// supported target in one call.
type RateSource interface {
	FetchRates(ctx context.Context, source string) (map[string]float64, error)
}

// Converter resolves minor-unit conversion rates through the shared cache,
// filling it from the rate source on a miss.
type Converter struct {
	cache  cache.Cache
	source RateSource
	ttl    time.Duration
	logger *logger.Logger
}

// NewConverter builds a Converter. ttl bounds how long filled rates live.
func NewConverter(c cache.Cache, source RateSource, ttl time.Duration, log *logger.Logger) *Converter {
	return &Converter{cache: c, source: source, ttl: ttl, logger: log}
}

// Convert returns the rate such that
//
//	(source currency minor units) * rate = (target currency minor units)
//
// The exponent difference between the currencies is already embedded in the
// rate: 1 USD = 110 JPY means one cent converts to 1.10 yen, so the rate
// for USD→JPY is 1.10.
func (c *Converter) Convert(ctx context.Context, source, target string) (float64, error) {
	sourceExp, ok := money.ISOCodesToExp[source]
	if !ok {
		return 0, fmt.Errorf("%w: source=%s", ErrUnknownCurrency, source)
	}
	targetExp, ok := money.ISOCodesToExp[target]
	if !ok {
		return 0, fmt.Errorf("%w: target=%s", ErrUnknownCurrency, target)
	}
	if source == target {
		return 1, nil
	}

	rate, err := c.cachedRate(ctx, source, target)
	if errors.Is(err, cache.ErrMiss) {
		inverse, invErr := c.cachedRate(ctx, target, source)
		if invErr == nil {
			rate = 1 / inverse
		} else if errors.Is(invErr, cache.ErrMiss) {
			if err := c.FillCache(ctx, source); err != nil {
				return 0, err
			}
			rate, err = c.cachedRate(ctx, source, target)
			if err != nil {
				return 0, fmt.Errorf("rate %s-%s missing after cache fill: %w", source, target, err)
			}
		} else {
			return 0, invErr
		}
	} else if err != nil {
		return 0, err
	}

	return rate * math.Pow(10, float64(targetExp-sourceExp)), nil
}

// FillCache fetches source → every supported target in one request and
// caches each pair. This costs one API request.
func (c *Converter) FillCache(ctx context.Context, source string) error {
	if _, ok := money.ISOCodesToExp[source]; !ok {
		return fmt.Errorf("%w: source=%s", ErrUnknownCurrency, source)
	}

	startedAt := time.Now()
	rates, err := c.source.FetchRates(ctx, source)
	if err != nil {
		return err
	}

	for target, rate := range rates {
		key := cacheKey(source, target)
		value := strconv.FormatFloat(rate, 'f', -1, 64)
		if err := c.cache.Set(ctx, key, []byte(value), c.ttl); err != nil {
			return fmt.Errorf("cache rate %s: %w", key, err)
		}
	}

	c.logger.Debug("currency cache fill",
		zap.String("source", source),
		zap.Int("pairs", len(rates)),
		zap.Duration("took", time.Since(startedAt)),
	)
	return nil
}

func (c *Converter) cachedRate(ctx context.Context, source, target string) (float64, error) {
	raw, err := c.cache.Get(ctx, cacheKey(source, target))
	if err != nil {
		return 0, err
	}
	rate, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed cached rate %s-%s: %w", source, target, err)
	}
	return rate, nil
}

func cacheKey(source, target string) string {
	return cacheKeyPrefix + "/" + source + "-" + target
}
