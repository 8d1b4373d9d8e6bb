// Package fx supports converting between currencies using the currency
// layer API. Results for every target currency from a particular source are
// cached together, since the charge to convert one currency is the same as
// the charge to convert one to many currencies.
//
// This requires a paid plan so that source currency swaps (e.g. GBP to EUR)
// are available.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/LoansBot/loansbot/internal/money"
	"github.com/LoansBot/loansbot/pkg/logger"
	"go.uber.org/zap"
)

const liveEndpoint = "https://apilayer.net/api/live"

// Client fetches live conversion rates from the currency layer API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	endpoint   string
	logger     *logger.Logger
}

// NewClient builds a rate client with the given paid API key.
func NewClient(apiKey string, log *logger.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   liveEndpoint,
		logger:     log,
	}
}

type liveResponse struct {
	Success bool               `json:"success"`
	Quotes  map[string]float64 `json:"quotes"`
}

// FetchRates retrieves the conversion rate from source to every supported
// currency in a single request. The request is attempted up to five times
// with exponential backoff. Keys of the result are target ISO codes.
func (c *Client) FetchRates(ctx context.Context, source string) (map[string]float64, error) {
	currencies := make([]string, 0, len(money.ISOCodesToExp))
	for code := range money.ISOCodesToExp {
		currencies = append(currencies, code)
	}
	sort.Strings(currencies)

	params := url.Values{}
	params.Set("access_key", c.apiKey)
	params.Set("currencies", strings.Join(currencies, ","))
	params.Set("source", source)
	params.Set("format", "1")
	requestURL := c.endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		rates, err := c.fetchOnce(ctx, requestURL, source)
		if err == nil {
			return rates, nil
		}
		lastErr = err
		c.logger.Warn("currency convert attempt failed",
			zap.String("source", source),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == 5 {
			break
		}
		select {
		case <-time.After(time.Duration(1<<attempt) * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("fetch rates for %s: %w", source, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, requestURL, source string) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body liveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !body.Success || body.Quotes == nil {
		return nil, fmt.Errorf("unsuccessful response for source %s", source)
	}

	rates := make(map[string]float64, len(body.Quotes))
	for pair, rate := range body.Quotes {
		// Quotes are keyed SOURCETARGET, e.g. USDGBP.
		if !strings.HasPrefix(pair, source) {
			continue
		}
		rates[pair[len(source):]] = rate
	}
	return rates, nil
}
