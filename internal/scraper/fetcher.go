package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/pauljones0/brick-resale-tracker/internal/config"
	"github.com/pauljones0/brick-resale-tracker/internal/util"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; brick-resale-tracker/1.0)"
	maxPageBytes = 10 << 20
)

var ErrDomainNotAllowed = errors.New("domain not in allowlist")

// Fetcher retrieves the HTML of a listing page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type HTTPFetcher struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	allowedDomains []string
	backoff        util.Backoff
}

func NewHTTPFetcher(cfg *config.Config) *HTTPFetcher {
	limit := rate.Inf
	if cfg.FetchRatePerSecond > 0 {
		limit = rate.Limit(cfg.FetchRatePerSecond)
	}
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		limiter:        rate.NewLimiter(limit, 1),
		allowedDomains: cfg.AllowedDomains,
		backoff:        util.DefaultBackoff(cfg.FetchMaxRetries),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := checkAllowed(pageURL, f.allowedDomains); err != nil {
		return "", err
	}

	var body string
	err := f.backoff.Do(ctx, func(attempt int) error {
		if attempt > 0 {
			slog.Info("Retrying page fetch", "url", pageURL, "attempt", attempt+1)
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		body, err = f.fetchOnce(ctx, pageURL)
		return err
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", util.Permanent(fmt.Errorf("failed to create request for URL %s: %w", pageURL, err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, res.StatusCode)
		switch {
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusServiceUnavailable:
			if wait, ok := parseRetryAfter(res.Header.Get("Retry-After"), time.Now()); ok {
				return "", util.RetryAfter(err, wait)
			}
		case res.StatusCode >= 400 && res.StatusCode < 500:
			return "", util.Permanent(err)
		}
		return "", err
	}

	reader, err := charset.NewReader(io.LimitReader(res.Body, maxPageBytes), res.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to decode body of %s: %w", pageURL, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}
	return string(data), nil
}

// parseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(0, at.Sub(now)), true
	}
	return 0, false
}

// checkAllowed accepts http(s) URLs whose host equals an allowlisted domain
// or is a subdomain of one.
func checkAllowed(pageURL string, allowed []string) error {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL %s: %w", pageURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme)
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	for _, domain := range allowed {
		domain = strings.ToLower(domain)
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDomainNotAllowed, hostname)
}
