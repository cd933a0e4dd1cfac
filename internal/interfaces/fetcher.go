package interfaces

import "context"

// Fetcher is the shared HTTP fetcher used by all workflows. Implementations
// rotate user-agents and inject random delays; they hold no mutable state
// after construction and are safe for concurrent use.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
	GetJSON(ctx context.Context, url string, v any) error
	// Download streams a bulk file without the per-request timeout.
	Download(ctx context.Context, url string) ([]byte, error)
	// RenderedHTML loads a JavaScript-rendered page in a browser created for
	// this call and disposed on every exit path.
	RenderedHTML(ctx context.Context, url string) (string, error)
}
