package stockmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateWindow and DefaultMaxRequests give the default fixed
	// request rate when no window is configured.
	DefaultRateWindow  = time.Minute
	DefaultMaxRequests = 60
)

// Client is a stock-metadata service client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	rateWindow time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateWindow fixes the request rate at maxRequests per window. The window
// is also the back-off period after a 429 response.
func WithRateWindow(window time.Duration, maxRequests int) ClientOption {
	return func(c *Client) {
		c.rateWindow = window
		c.limiter = rate.NewLimiter(rate.Limit(float64(maxRequests)/window.Seconds()), 1)
	}
}

// NewClient creates a new client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		rateWindow: DefaultRateWindow,
		limiter:    rate.NewLimiter(rate.Limit(float64(DefaultMaxRequests)/DefaultRateWindow.Seconds()), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LookupCUSIP retrieves the metadata for one CUSIP. A 429 response sleeps one
// rate window and retries once before surfacing a RateLimitError.
func (c *Client) LookupCUSIP(ctx context.Context, cusip string) (*SecurityMeta, error) {
	meta, err := c.lookup(ctx, cusip)
	if err == nil {
		return meta, nil
	}

	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusTooManyRequests {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Warn().
			Str("cusip", cusip).
			Dur("wait", c.rateWindow).
			Msg("Stock-metadata rate limited, backing off one window")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.rateWindow):
	}

	meta, err = c.lookup(ctx, cusip)
	if err == nil {
		return meta, nil
	}
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: c.rateWindow}
	}
	return nil, err
}

func (c *Client) lookup(ctx context.Context, cusip string) (*SecurityMeta, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("api_token", c.apiKey)
	endpoint := "/securities/cusip/" + url.PathEscape(cusip)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug().Str("cusip", cusip).Msg("Stock-metadata API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	var meta SecurityMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &meta, nil
}
