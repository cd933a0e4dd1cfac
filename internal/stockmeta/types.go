// Package stockmeta provides a client for the stock-metadata service used to
// enrich holdings rows by CUSIP.
package stockmeta

import (
	"fmt"
	"time"
)

// SecurityMeta is the enrichment payload for one CUSIP.
type SecurityMeta struct {
	CUSIP        string `json:"cusip"`
	MarketSector string `json:"market_sector"`
	Ticker       string `json:"ticker"`
	Exchange     string `json:"exchange"`
	SecurityType string `json:"security_type"`
}

// APIError represents an error response from the service.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stock-metadata API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError signals that the service rejected the request rate.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("stock-metadata rate limit exceeded, retry after %s", e.RetryAfter)
}
