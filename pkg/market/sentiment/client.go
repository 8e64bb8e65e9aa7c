// Package sentiment fetches the alternative.me crypto Fear & Greed index.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.alternative.me"
	defaultHTTPTimeout = 10 * time.Second
	defaultMaxRetries  = 2

	retryBackoffBase = 150 * time.Millisecond
)

// Index is a single Fear & Greed reading. Value ranges 0 (extreme fear)
// to 100 (extreme greed).
type Index struct {
	Value          float64
	Classification string
	At             time.Time
}

// Client calls the alternative.me fng endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// Option customises the sentiment client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
	}
}

// NewClient builds a sentiment client with sane defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fngResponse struct {
	Name     string     `json:"name"`
	Data     []fngEntry `json:"data"`
	Metadata struct {
		Error *string `json:"error"`
	} `json:"metadata"`
}

type fngEntry struct {
	Value               string `json:"value"`
	ValueClassification string `json:"value_classification"`
	Timestamp           string `json:"timestamp"`
}

// FearGreed returns the most recent Fear & Greed index reading.
func (c *Client) FearGreed(ctx context.Context) (*Index, error) {
	endpoint := c.baseURL + "/fng/?" + url.Values{
		"limit":  {"1"},
		"format": {"json"},
	}.Encode()

	var payload fngResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.Metadata.Error != nil && *payload.Metadata.Error != "" {
		return nil, fmt.Errorf("sentiment: api error: %s", *payload.Metadata.Error)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("sentiment: empty response")
	}

	entry := payload.Data[0]
	value, err := strconv.ParseFloat(entry.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("sentiment: parse value %q: %w", entry.Value, err)
	}

	index := &Index{
		Value:          value,
		Classification: entry.ValueClassification,
	}
	if sec, err := strconv.ParseInt(entry.Timestamp, 10, 64); err == nil {
		index.At = time.Unix(sec, 0).UTC()
	}
	return index, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, result interface{}) error {
	var lastErr error
	backoff := retryBackoffBase

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("sentiment: request cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return fmt.Errorf("sentiment: build request: %w", err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("sentiment: do request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("sentiment: http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("sentiment: decode response: %w", err)
			}
			return nil
		}()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
