package util

import (
	"net/url"
	"strings"
)

// ResolveLink turns a listing href into an absolute URL. Hrefs that already
// carry a scheme are returned untouched; anything else is prefixed with the
// origin (scheme://host) of baseURL.
func ResolveLink(href, baseURL string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil && u.Scheme != "" {
		return href
	}
	if strings.HasPrefix(href, "//") {
		if base, err := url.Parse(baseURL); err == nil && base.Scheme != "" {
			return base.Scheme + ":" + href
		}
		return "https:" + href
	}

	origin := Origin(baseURL)
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return origin + href
}

// Origin returns scheme://host for rawURL, or "" when it is not absolute.
func Origin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Hostname returns the host of rawURL without port, or "" on parse failure.
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
