package stockmeta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCUSIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/securities/cusip/037833100", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		w.Write([]byte(`{"cusip":"037833100","market_sector":"Technology","ticker":"AAPL","exchange":"NASDAQ","security_type":"Common Stock"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", WithRateWindow(time.Second, 100))
	meta, err := client.LookupCUSIP(context.Background(), "037833100")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", meta.Ticker)
	assert.Equal(t, "Technology", meta.MarketSector)
	assert.Equal(t, "NASDAQ", meta.Exchange)
}

func TestLookupCUSIPRetriesOnceAfter429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"cusip":"037833100","ticker":"AAPL"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithRateWindow(50*time.Millisecond, 100))
	meta, err := client.LookupCUSIP(context.Background(), "037833100")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", meta.Ticker)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLookupCUSIPGivesUpAfterSecond429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithRateWindow(10*time.Millisecond, 100))
	_, err := client.LookupCUSIP(context.Background(), "037833100")
	require.Error(t, err)

	var rateErr *RateLimitError
	assert.True(t, errors.As(err, &rateErr))
}

func TestLookupCUSIPAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("unknown cusip"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithRateWindow(time.Second, 100))
	_, err := client.LookupCUSIP(context.Background(), "XXXX")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "unknown cusip", apiErr.Message)
}
