// Package fetch provides the two interchangeable page transports: a
// lightweight HTTP fetch and a rendered headless-browser fetch.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/sites"
)

// Frame is one embedded frame harvested alongside the main document.
type Frame struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// RawPage is the result of a fetch, whichever transport produced it.
type RawPage struct {
	Status   int
	Body     string
	FinalURL string
	Frames   []Frame
}

// Transport abstracts a page-fetching strategy.
type Transport interface {
	// Fetch retrieves the page at url using the site's adapter settings.
	Fetch(ctx context.Context, url string, site sites.Site) (RawPage, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Name returns "static" or "rendered".
	Name() string
}

// Error is a transport-level fetch failure: network error, timeout, or a
// non-success HTTP status.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds common transport configuration. Poll checks use the short
// timeout tier; interactive add-tracking lookups use the long one since a
// human is waiting and latency is tolerable.
type Config struct {
	UserAgent          string
	PollTimeout        time.Duration
	InteractiveTimeout time.Duration
	SettleDelay        time.Duration // rendered fetch: wait after DOM-ready
	MaxFrames          int           // embedded frames harvested per page
	RequestsPerSecond  float64       // ceiling on outbound lightweight requests
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		PollTimeout:        15 * time.Second,
		InteractiveTimeout: 45 * time.Second,
		SettleDelay:        2 * time.Second,
		MaxFrames:          3,
		RequestsPerSecond:  8,
	}
}

// timeoutFrom derives a request timeout from the context deadline when one
// is set and tighter than the fallback.
func timeoutFrom(ctx context.Context, fallback time.Duration) time.Duration {
	if d, ok := ctx.Deadline(); ok {
		if r := time.Until(d); r > 0 && r < fallback {
			return r
		}
	}
	return fallback
}

// browserHeaders is the realistic header set sent on every lightweight
// request. Per-site extra headers are merged on top.
func browserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "he-IL,he;q=0.9,en-US;q=0.8,en;q=0.7",
		"Accept-Encoding":           "gzip, deflate",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	}
}
