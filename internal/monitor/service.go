package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/extract"
	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
	"github.com/shelfwatch/shelfwatch/internal/track"
)

// Service is the create-tracking entry point used by interactive frontends.
type Service struct {
	registry *sites.Registry
	fetcher  Fetcher
	pipeline *extract.Pipeline
	store    Storage
	timeout  time.Duration
}

// NewService builds the service with the interactive-tier timeout: a human
// is waiting, latency is tolerable.
func NewService(registry *sites.Registry, fetcher Fetcher, pipeline *extract.Pipeline, store Storage, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = fetch.DefaultConfig().InteractiveTimeout
	}
	return &Service{
		registry: registry,
		fetcher:  fetcher,
		pipeline: pipeline,
		store:    store,
		timeout:  timeout,
	}
}

// AddResult reports what AddTracking did.
type AddResult struct {
	Tracking track.Tracking

	// Duplicate means the owner already tracks this product; Tracking
	// holds the existing row.
	Duplicate bool

	// Revived means the URL matched an existing errored tracking, which
	// was reset to active instead of duplicated.
	Revived bool

	// NameRecognized is false when the lookup succeeded but no usable
	// product name could be extracted; the frontend should warn.
	NameRecognized bool
}

// AddTracking creates a tracking for (owner, url) after an interactive
// lookup. Dedup runs on the derived product key when one exists, else on
// the exact URL. A lookup failure is returned as-is so the frontend can
// report a generic, retryable failure.
func (s *Service) AddTracking(ctx context.Context, ownerID int64, rawURL string, mode track.Mode, intervalMinutes int) (AddResult, error) {
	site, ok := s.registry.Match(rawURL)
	if !ok {
		return AddResult{}, ErrUnknownSite
	}
	key := sites.ProductKey(rawURL, site)

	existing, found, err := s.store.FindDuplicate(ctx, ownerID, rawURL, key, site.ID)
	if err != nil {
		return AddResult{}, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if found {
		if existing.Status == track.StatusError {
			revived := track.Revive(existing, time.Now().UTC())
			if err := s.store.Update(ctx, revived); err != nil {
				return AddResult{}, fmt.Errorf("failed to revive tracking %d: %w", existing.ID, err)
			}
			logger.Info("revived errored tracking on re-add", "tracking", revived.ID, "owner", ownerID)
			return AddResult{Tracking: revived, Revived: true, NameRecognized: true}, nil
		}
		return AddResult{Tracking: existing, Duplicate: true, NameRecognized: true}, nil
	}

	ownerInterval, err := s.store.EnsureOwner(ctx, ownerID, DefaultIntervalMinutes)
	if err != nil {
		return AddResult{}, fmt.Errorf("owner lookup failed: %w", err)
	}
	if intervalMinutes <= 0 {
		intervalMinutes = ownerInterval
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	usable := func(p fetch.RawPage) bool {
		return s.pipeline.QuickName(p, site, rawURL) != ""
	}
	page, err := s.fetcher.Fetch(lookupCtx, rawURL, site, usable)
	if err != nil {
		return AddResult{}, fmt.Errorf("product lookup failed: %w", err)
	}
	res := s.pipeline.Run(lookupCtx, page, site, rawURL)

	if mode == "" {
		mode = track.ModeChanges
	}
	tr := track.Tracking{
		OwnerID:         ownerID,
		URL:             rawURL,
		Key:             key,
		SiteID:          site.ID,
		Name:            res.Name,
		Mode:            mode,
		Status:          track.StatusActive,
		IntervalMinutes: clampInterval(intervalMinutes, DefaultIntervalMinutes),
	}
	if err := s.store.Insert(ctx, &tr); err != nil {
		return AddResult{}, fmt.Errorf("failed to create tracking: %w", err)
	}

	logger.Info("tracking created",
		"tracking", tr.ID, "owner", ownerID, "site", site.ID, "mode", mode, "key", key)
	return AddResult{Tracking: tr, NameRecognized: res.Name != ""}, nil
}
