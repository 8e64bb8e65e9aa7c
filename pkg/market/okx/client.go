package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL          = "https://www.okx.com"
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 150 * time.Millisecond
)

// codeInstrumentNotFound is OKX's "Instrument ID does not exist" API code.
const codeInstrumentNotFound = "51001"

// ErrInstrumentNotFound indicates that the requested instrument is not listed.
var ErrInstrumentNotFound = errors.New("okx: instrument not found")

// Client wraps access to the OKX v5 public REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *log.Logger
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the default REST endpoint URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithMaxRetries adjusts the retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithLogger injects a custom logger (defaults to log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs an OKX API client.
func NewClient(opts ...Option) *Client {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		maxRetries: defaultMaxRetries,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = httpClient
	}
	if client.logger == nil {
		client.logger = log.Default()
	}
	return client
}

// GetTicker returns the rolling 24h ticker for one instrument, e.g. "BTC-USDT".
func (c *Client) GetTicker(ctx context.Context, instID string) (*Ticker, error) {
	var data []Ticker
	query := url.Values{"instId": []string{instID}}
	if err := c.getJSON(ctx, "/api/v5/market/ticker", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrInstrumentNotFound
	}
	return &data[0], nil
}

// GetFundingRate returns current funding data for a perpetual swap, e.g.
// "BTC-USDT-SWAP".
func (c *Client) GetFundingRate(ctx context.Context, instID string) (*FundingRate, error) {
	var data []FundingRate
	query := url.Values{"instId": []string{instID}}
	if err := c.getJSON(ctx, "/api/v5/public/funding-rate", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrInstrumentNotFound
	}
	return &data[0], nil
}

// GetOpenInterest returns open interest for a perpetual swap.
func (c *Client) GetOpenInterest(ctx context.Context, instID string) (*OpenInterest, error) {
	var data []OpenInterest
	query := url.Values{
		"instType": []string{"SWAP"},
		"instId":   []string{instID},
	}
	if err := c.getJSON(ctx, "/api/v5/public/open-interest", query, &data); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrInstrumentNotFound
	}
	return &data[0], nil
}

// GetInstruments lists instruments of the given type ("SPOT", "SWAP", ...).
func (c *Client) GetInstruments(ctx context.Context, instType string) ([]Instrument, error) {
	var data []Instrument
	query := url.Values{"instType": []string{instType}}
	if err := c.getJSON(ctx, "/api/v5/public/instruments", query, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// getJSON fetches path with query params, unwraps the OKX envelope and
// decodes its data array into result.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("okx: build request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("okx: read response: %w", readErr)
			} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("okx: http status %d: %s", resp.StatusCode, string(body))
			} else {
				var envelope apiResponse
				if err := json.Unmarshal(body, &envelope); err != nil {
					return fmt.Errorf("okx: decode response: %w", err)
				}
				if envelope.Code != "0" {
					if envelope.Code == codeInstrumentNotFound {
						return ErrInstrumentNotFound
					}
					return fmt.Errorf("okx: api code %s: %s", envelope.Code, envelope.Msg)
				}
				if result != nil {
					if err := json.Unmarshal(envelope.Data, result); err != nil {
						return fmt.Errorf("okx: decode data: %w", err)
					}
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
			continue
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("okx: request failed without error detail")
}

// logf prints debug output when a logger is configured.
func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// normalizeSymbol reduces any accepted spelling ("btc", "BTC-USDT",
// "BTC-USDT-SWAP") to the canonical coin symbol.
func normalizeSymbol(symbol string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	trimmed = strings.TrimSuffix(trimmed, "-USDT-SWAP")
	trimmed = strings.TrimSuffix(trimmed, "-USDT")
	return trimmed
}

// spotInstID maps a coin symbol to its USDT spot instrument.
func spotInstID(symbol string) string {
	return symbol + "-USDT"
}

// perpInstID maps a coin symbol to its USDT perpetual swap instrument.
func perpInstID(symbol string) string {
	return symbol + "-USDT-SWAP"
}

func parseFloat(val string) (float64, error) {
	if val == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(val, 64)
}

func parseMillis(val string) (time.Time, error) {
	if val == "" {
		return time.Time{}, fmt.Errorf("okx: empty timestamp")
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("okx: parse timestamp %q: %w", val, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
