package fetcher

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// RenderedHTML loads a JavaScript-rendered page in a headless browser created
// for this call. The browser is torn down on every exit path; a crashed or
// leaked instance never outlives the request.
func (s *Service) RenderedHTML(ctx context.Context, url string) (string, error) {
	if err := s.politeDelay(ctx); err != nil {
		return "", err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(s.userAgent()),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(s.renderWait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}

	s.logger.Debug().Str("url", url).Int("bytes", len(html)).Msg("Rendered page")
	return html, nil
}
