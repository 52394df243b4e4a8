package fetch

import (
	"context"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
)

// Rendered fetches pages through the shared headless browser. Each fetch
// opens and closes its own tab so a page-level failure cannot take down the
// browser; a dead browser is re-initialized once and the fetch retried
// exactly once.
type Rendered struct {
	config  Config
	browser *Browser
}

// NewRendered creates the rendered transport on top of a browser supervisor.
func NewRendered(cfg Config, browser *Browser) *Rendered {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultConfig().PollTimeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultConfig().SettleDelay
	}
	return &Rendered{config: cfg, browser: browser}
}

// Fetch loads the URL in a fresh tab, waits for DOM-ready plus the settle
// delay, and extracts the rendered document. Several sites open a secondary
// window with the real content; when one exists in the same browsing
// context, extraction re-targets to the most recently opened page.
func (r *Rendered) Fetch(ctx context.Context, targetURL string, site sites.Site) (RawPage, error) {
	page, err := r.fetchOnce(ctx, targetURL, site)
	if err != nil && ctx.Err() == nil && deadBrowser(err) {
		r.browser.Recreate()
		page, err = r.fetchOnce(ctx, targetURL, site)
	}
	if err != nil {
		return page, &Error{URL: targetURL, Err: err}
	}
	return page, nil
}

func (r *Rendered) fetchOnce(ctx context.Context, targetURL string, site sites.Site) (RawPage, error) {
	result := RawPage{Status: 200, FinalURL: targetURL}

	tabCtx, cancelTab := chromedp.NewContext(r.browser.Alloc())
	defer cancelTab()

	timeout := timeoutFrom(ctx, r.config.PollTimeout)
	runCtx, cancelRun := context.WithTimeout(tabCtx, timeout)
	defer cancelRun()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.config.SettleDelay),
	)
	if err != nil {
		return result, err
	}

	// Prefer a popup window spawned by this tab, if any.
	docCtx := runCtx
	if popupID := r.newestPopup(runCtx); popupID != "" {
		logger.Debug("re-targeting to secondary window", "url", targetURL)
		popupCtx, cancelPopup := chromedp.NewContext(tabCtx, chromedp.WithTargetID(popupID))
		defer cancelPopup()
		popupRunCtx, cancelPopupRun := context.WithTimeout(popupCtx, timeout)
		defer cancelPopupRun()
		docCtx = popupRunCtx
	}

	var finalURL string
	if err := chromedp.Run(docCtx,
		chromedp.OuterHTML("html", &result.Body),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(frameHarvestJS, &result.Frames),
	); err != nil {
		return result, err
	}
	if finalURL != "" {
		result.FinalURL = finalURL
	}

	if n := r.config.MaxFrames; n > 0 && len(result.Frames) > n {
		result.Frames = result.Frames[:n]
	}

	return result, nil
}

// newestPopup returns the id of the most recently opened page target spawned
// by the current tab, or "" when the tab opened no secondary window.
func (r *Rendered) newestPopup(ctx context.Context) target.ID {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return ""
	}
	self := c.Target.TargetID

	infos, err := chromedp.Targets(ctx)
	if err != nil {
		return ""
	}

	var popup target.ID
	for _, info := range infos {
		if info.Type == "page" && info.OpenerID == self && info.TargetID != self {
			// Targets are listed oldest first; keep the last match.
			popup = info.TargetID
		}
	}
	return popup
}

// frameHarvestJS collects the rendered HTML of each embedded frame.
// Cross-origin frames come back empty and are dropped by the pipeline.
const frameHarvestJS = `Array.from(document.querySelectorAll("iframe")).map((f) => {
	try {
		return {url: f.src || "", html: f.contentDocument ? f.contentDocument.documentElement.outerHTML : ""};
	} catch (e) {
		return {url: f.src || "", html: ""};
	}
})`

// Close releases browser resources.
func (r *Rendered) Close() error { return r.browser.Close() }

// Name returns the transport name.
func (r *Rendered) Name() string { return "rendered" }
