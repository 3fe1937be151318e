package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pauljones0/brick-resale-tracker/internal/config"
)

// BrowserFetcher renders pages in headless Chrome. Marketplaces that build
// their listing grid client-side return an empty shell to plain HTTP.
type BrowserFetcher struct {
	allocCtx       context.Context
	cancelAlloc    context.CancelFunc
	allowedDomains []string
	timeout        time.Duration
}

func NewBrowserFetcher(cfg *config.Config) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &BrowserFetcher{
		allocCtx:       allocCtx,
		cancelAlloc:    cancel,
		allowedDomains: cfg.AllowedDomains,
		timeout:        cfg.FetchTimeout,
	}
}

func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := checkAllowed(pageURL, b.allowedDomains); err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	if b.timeout > 0 {
		var cancelTimeout context.CancelFunc
		tabCtx, cancelTimeout = context.WithTimeout(tabCtx, b.timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", pageURL, err)
	}
	return html, nil
}

// Close shuts down the browser process.
func (b *BrowserFetcher) Close() {
	b.cancelAlloc()
}
