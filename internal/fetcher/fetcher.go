// Package fetcher is the shared HTTP layer for all scraping workflows.
// Every request picks a random user-agent from the pool and sleeps a random
// politeness delay first, so sources see browser-like, spaced-out traffic.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/common"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// HTTPError is returned for non-2xx responses so callers can branch on status.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Service implements interfaces.Fetcher.
type Service struct {
	client         *http.Client
	downloadClient *http.Client
	userAgents     []string
	minDelay       time.Duration
	maxDelay       time.Duration
	renderWait     time.Duration
	logger         arbor.ILogger
}

// New creates the fetcher from configuration. The user-agent pool is loaded
// from a JSON array file; a missing file degrades to a single default agent.
func New(cfg *common.FetcherConfig, logger arbor.ILogger) (*Service, error) {
	agents, err := loadUserAgents(cfg.UserAgentsFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.UserAgentsFile).Msg("Failed to load user-agent pool, using default")
		agents = []string{defaultUserAgent}
	}

	timeout := common.Duration(cfg.Timeout, 60*time.Second)

	return &Service{
		client: &http.Client{Timeout: timeout},
		// Bulk downloads run without a client timeout; cancellation comes
		// from the request context.
		downloadClient: &http.Client{},
		userAgents:     agents,
		minDelay:       common.Duration(cfg.MinDelay, 0),
		maxDelay:       common.Duration(cfg.MaxDelay, 0),
		renderWait:     common.Duration(cfg.RenderWait, 3*time.Second),
		logger:         logger,
	}, nil
}

func loadUserAgents(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("no user-agents file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var agents []string
	if err := json.Unmarshal(data, &agents); err != nil {
		return nil, fmt.Errorf("failed to parse user-agents file: %w", err)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("user-agents file is empty")
	}
	return agents, nil
}

func (s *Service) userAgent() string {
	return s.userAgents[rand.Intn(len(s.userAgents))]
}

func (s *Service) politeDelay(ctx context.Context) error {
	if s.maxDelay <= 0 || s.maxDelay < s.minDelay {
		return nil
	}
	d := s.minDelay
	if span := s.maxDelay - s.minDelay; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *Service) fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if err := s.politeDelay(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", s.userAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	s.logger.Debug().Str("url", url).Int("bytes", len(body)).Msg("Fetched")
	return body, nil
}

// Get fetches a URL with the standard request timeout.
func (s *Service) Get(ctx context.Context, url string) ([]byte, error) {
	return s.fetch(ctx, s.client, url)
}

// GetJSON fetches a URL and decodes the JSON response into v.
func (s *Service) GetJSON(ctx context.Context, url string, v any) error {
	body, err := s.fetch(ctx, s.client, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}
	return nil
}

// Download fetches a bulk file without the per-request timeout.
func (s *Service) Download(ctx context.Context, url string) ([]byte, error) {
	return s.fetch(ctx, s.downloadClient, url)
}
