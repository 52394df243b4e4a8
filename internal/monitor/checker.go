package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/extract"
	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
	"github.com/shelfwatch/shelfwatch/internal/track"
)

// Checker runs one tracking end-to-end: fetch, extract, detect, apply,
// persist, notify. Failures stay inside the item; only a store failure
// propagates to the caller.
type Checker struct {
	registry *sites.Registry
	fetcher  Fetcher
	pipeline *extract.Pipeline
	store    Storage
	notifier Notifier
	timeout  time.Duration
}

// NewChecker assembles a checker with the poll-tier timeout.
func NewChecker(registry *sites.Registry, fetcher Fetcher, pipeline *extract.Pipeline, store Storage, notifier Notifier, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = fetch.DefaultConfig().PollTimeout
	}
	return &Checker{
		registry: registry,
		fetcher:  fetcher,
		pipeline: pipeline,
		store:    store,
		notifier: notifier,
		timeout:  timeout,
	}
}

// Check polls one tracking and folds the outcome into the store. An unknown
// site id is a configuration problem: logged and skipped, no state change.
func (c *Checker) Check(ctx context.Context, tr track.Tracking) error {
	site, ok := c.registry.Lookup(tr.SiteID)
	if !ok {
		logger.Warn("tracking references unknown site, skipping",
			"tracking", tr.ID, "site", tr.SiteID)
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := c.poll(checkCtx, tr, site)
	updated := track.Apply(tr, out, time.Now().UTC())

	// Refresh a previously unrecognized display name once a poll finds one.
	if !out.Failed && !extract.ValidName(updated.Name, site) && out.Name != "" {
		updated.Name = out.Name
	}

	if err := c.store.Update(ctx, updated); err != nil {
		return fmt.Errorf("tracking %d: %w", tr.ID, err)
	}

	if updated.Status == track.StatusError && tr.Status != track.StatusError {
		logger.Warn("tracking entered error state",
			"tracking", tr.ID, "url", tr.URL, "failures", updated.ErrorCount)
	}

	if out.Notify {
		c.notify(ctx, updated, out)
	}
	return nil
}

// poll produces the outcome of one fetch+extract attempt.
func (c *Checker) poll(ctx context.Context, tr track.Tracking, site sites.Site) track.Outcome {
	usable := func(p fetch.RawPage) bool {
		return c.pipeline.QuickName(p, site, tr.URL) != ""
	}

	page, err := c.fetcher.Fetch(ctx, tr.URL, site, usable)
	if err != nil {
		logger.Warn("poll fetch failed", "tracking", tr.ID, "url", tr.URL, "error", err)
		return track.Failure()
	}

	res := c.pipeline.Run(ctx, page, site, tr.URL)
	out := track.Detect(tr, res)
	out.Name = res.Name
	return out
}

func (c *Checker) notify(ctx context.Context, tr track.Tracking, out track.Outcome) {
	msg := alertMessage(tr, out)

	err := c.notifier.Notify(ctx, tr, msg, out.NewItems)
	switch {
	case errors.Is(err, ErrRecipientUnreachable):
		logger.Warn("recipient unreachable, flagging owner as blocked", "owner", tr.OwnerID)
		if berr := c.store.MarkOwnerBlocked(ctx, tr.OwnerID, true); berr != nil {
			logger.Error("failed to flag blocked owner", "owner", tr.OwnerID, "error", berr)
		}
	case err != nil:
		logger.Error("notification delivery failed", "tracking", tr.ID, "error", err)
	}
}

// alertMessage renders the user-facing alert body.
func alertMessage(tr track.Tracking, out track.Outcome) string {
	if tr.Mode == track.ModeStock {
		msg := fmt.Sprintf("🎉 המוצר חזר למלאי!\n%s\n%s", tr.Name, tr.URL)
		if out.StockText != "" {
			msg += "\n" + out.StockText
		}
		return msg
	}
	return fmt.Sprintf("🔔 זוהה שינוי בעמוד המעקב\n%s\n%s", tr.Name, tr.URL)
}
