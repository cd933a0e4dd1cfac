package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundtrace/fundtrace/internal/common"
)

func newTestFetcher(t *testing.T) *Service {
	t.Helper()
	svc, err := New(&common.FetcherConfig{Timeout: "5s"}, common.GetLogger())
	require.NoError(t, err)
	return svc
}

func TestGetSetsUserAgent(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	svc := newTestFetcher(t)
	body, err := svc.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.NotEmpty(t, gotAgent)
}

func TestGetReturnsTypedErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := newTestFetcher(t)
	_, err := svc.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
}

func TestGetJSONDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Rural Roads","total":42.5}`))
	}))
	defer srv.Close()

	svc := newTestFetcher(t)
	var out struct {
		Name  string  `json:"name"`
		Total float64 `json:"total"`
	}
	require.NoError(t, svc.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "Rural Roads", out.Name)
	assert.Equal(t, 42.5, out.Total)
}

func TestLoadUserAgentsMissingFile(t *testing.T) {
	svc, err := New(&common.FetcherConfig{UserAgentsFile: "/nonexistent/agents.json"}, common.GetLogger())
	require.NoError(t, err)
	assert.Len(t, svc.userAgents, 1)
}
