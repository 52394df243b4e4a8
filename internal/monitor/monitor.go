// Package monitor wires the poll cycle together: due selection, batched
// concurrent checks, detection, state updates, and notify decisions.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/sites"
	"github.com/shelfwatch/shelfwatch/internal/track"
)

// Interval bounds for per-tracking check intervals, minutes.
const (
	MinIntervalMinutes     = 10
	MaxIntervalMinutes     = 1440
	DefaultIntervalMinutes = 60
)

// ErrUnknownSite is returned when a URL matches no configured site.
var ErrUnknownSite = errors.New("url does not belong to a supported site")

// ErrRecipientUnreachable is the delivery channel's way of saying the owner
// can no longer be reached; the owner gets flagged as blocked.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// Storage is what the monitor needs from the persistence collaborator.
// *store.Store satisfies it.
type Storage interface {
	Due(ctx context.Context, now time.Time, limit int) ([]track.Tracking, error)
	Update(ctx context.Context, tr track.Tracking) error
	Insert(ctx context.Context, tr *track.Tracking) error
	FindDuplicate(ctx context.Context, ownerID int64, url, key, siteID string) (track.Tracking, bool, error)
	EnsureOwner(ctx context.Context, ownerID int64, defaultInterval int) (int, error)
	MarkOwnerBlocked(ctx context.Context, ownerID int64, blocked bool) error
}

// Fetcher is the transport-picking fetch entry point. *fetch.Picker
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, site sites.Site, usable func(fetch.RawPage) bool) (fetch.RawPage, error)
}

// Notifier delivers alerts. Implementations report back only nil or
// ErrRecipientUnreachable; any other error is logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, tr track.Tracking, message string, newItems []string) error
}

// clampInterval forces an interval into the allowed range, substituting the
// fallback when unset.
func clampInterval(minutes, fallback int) int {
	if minutes <= 0 {
		minutes = fallback
	}
	if minutes < MinIntervalMinutes {
		return MinIntervalMinutes
	}
	if minutes > MaxIntervalMinutes {
		return MaxIntervalMinutes
	}
	return minutes
}
