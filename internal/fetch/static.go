package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
)

// Static fetches pages with plain HTTP requests via Colly. Cheap, stateless,
// safe at high concurrency: every request gets its own collector. Outbound
// requests across all goroutines share one rate ceiling so a busy poll cycle
// cannot hammer the target sites.
type Static struct {
	config  Config
	limiter *rate.Limiter
}

// NewStatic creates a lightweight transport.
func NewStatic(cfg Config) *Static {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultConfig().PollTimeout
	}
	if cfg.MaxFrames == 0 {
		cfg.MaxFrames = DefaultConfig().MaxFrames
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	return &Static{
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)),
	}
}

// Fetch retrieves the page and the HTML of its same-host embedded frames.
// A transport-level failure is retried once with a fresh collector; a second
// failure is the fetch error.
func (s *Static) Fetch(ctx context.Context, targetURL string, site sites.Site) (RawPage, error) {
	page, err := s.fetchOnce(ctx, targetURL, site)
	if err != nil {
		var fe *Error
		// Non-success status is not a dead session; do not retry it.
		if errors.As(err, &fe) && fe.Status != 0 {
			return page, err
		}
		logger.Debug("static fetch retrying once", "url", targetURL, "error", err)
		page, err = s.fetchOnce(ctx, targetURL, site)
	}
	if err != nil {
		return page, err
	}

	s.harvestFrames(ctx, &page, site)
	return page, nil
}

func (s *Static) fetchOnce(ctx context.Context, targetURL string, site sites.Site) (RawPage, error) {
	result := RawPage{FinalURL: targetURL}

	if err := s.limiter.Wait(ctx); err != nil {
		return result, &Error{URL: targetURL, Err: err}
	}

	c := colly.NewCollector(
		colly.UserAgent(s.config.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(timeoutFrom(ctx, s.config.PollTimeout))

	headers := browserHeaders(s.config.UserAgent)
	for k, v := range site.Headers {
		headers[k] = v
	}
	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.Status = r.StatusCode
		result.Body = string(r.Body)
		result.FinalURL = r.Request.URL.String()
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
			result.Status = r.StatusCode
		}
		fetchErr = &Error{URL: targetURL, Status: status, Err: err}
	})

	if err := c.Visit(targetURL); err != nil {
		// OnError saw the response; its error carries the HTTP status.
		if fetchErr != nil {
			return result, fetchErr
		}
		return result, &Error{URL: targetURL, Err: err}
	}
	if fetchErr != nil {
		return result, fetchErr
	}

	return result, nil
}

// harvestFrames fetches same-host iframe sources so the extraction pipeline
// can search embedded frames. Frame failures are not fetch failures.
func (s *Static) harvestFrames(ctx context.Context, page *RawPage, site sites.Site) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return
	}

	doc.Find("iframe[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(page.Frames) >= s.config.MaxFrames {
			return false
		}
		src, _ := sel.Attr("src")
		frameURL, err := url.Parse(strings.TrimSpace(src))
		if err != nil || frameURL.String() == "" {
			return true
		}
		if !frameURL.IsAbs() {
			frameURL = base.ResolveReference(frameURL)
		}
		if frameURL.Host != base.Host {
			return true
		}

		framePage, err := s.fetchOnce(ctx, frameURL.String(), site)
		if err != nil {
			logger.Debug("frame fetch failed", "url", frameURL.String(), "error", err)
			return true
		}
		page.Frames = append(page.Frames, Frame{URL: frameURL.String(), HTML: framePage.Body})
		return true
	})
}

// Close releases resources.
func (s *Static) Close() error { return nil }

// Name returns the transport name.
func (s *Static) Name() string { return "static" }
