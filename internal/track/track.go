// Package track owns the tracking aggregate, the detector that classifies a
// poll result, and the single state-transition function applied after every
// poll.
package track

import (
	"time"

	"github.com/shelfwatch/shelfwatch/internal/extract"
)

// Status is the tracking lifecycle state. The stock-specific states apply
// only to stock mode; changes-mode trackings stay active.
type Status string

const (
	StatusActive     Status = "active"
	StatusPaused     Status = "paused"
	StatusInStock    Status = "in_stock"
	StatusOutOfStock Status = "out_of_stock"
	StatusError      Status = "error"
)

// Mode selects what the detector watches for.
type Mode string

const (
	ModeStock   Mode = "stock"
	ModeChanges Mode = "changes"
)

// ErrorThreshold is the consecutive-failure count at which a tracking is
// forced into the error state.
const ErrorThreshold = 5

// Tracking is one owner's subscription to a product page. Mutated once per
// poll cycle by the owning check; owner actions (pause, resume, delete) race
// benignly at the store.
type Tracking struct {
	ID        int64
	OwnerID   int64
	URL       string
	Key       string // derived product key, "" when underivable
	OptionKey string // selected product option, "" when none
	SiteID    string
	Name      string

	Mode            Mode
	Status          Status
	IntervalMinutes int

	ErrorCount       int
	NotificationSent bool
	Fingerprint      string
	Items            []string // normalized content lines behind Fingerprint
	ChangeCount      int

	LastChecked      time.Time
	LastStatusChange time.Time
	CreatedAt        time.Time
}

// Schedulable reports whether a status participates in poll cycles.
func (s Status) Schedulable() bool {
	switch s {
	case StatusActive, StatusInStock, StatusOutOfStock:
		return true
	}
	return false
}

// Outcome is the poll-outcome value: everything a single check decided,
// consumed by Apply in one place.
type Outcome struct {
	Failed bool

	Name         string
	Status       Status
	Availability extract.Availability
	Fingerprint  string
	Items        []string
	StockText    string

	Changed  bool
	Notify   bool
	NewItems []string
}

// Failure is the outcome of a poll that never produced a usable result.
func Failure() Outcome {
	return Outcome{Failed: true}
}

// Detect classifies a successful extraction against the tracking's current
// state and decides whether to notify. It never mutates the tracking.
func Detect(tr Tracking, res extract.Result) Outcome {
	if tr.Mode == ModeChanges {
		return detectChanges(tr, res)
	}
	return detectStock(tr, res)
}

func detectStock(tr Tracking, res extract.Result) Outcome {
	out := Outcome{
		Availability: res.Availability,
		Fingerprint:  res.Fingerprint,
		Items:        res.Items,
		StockText:    res.StockText,
	}

	switch res.Availability {
	case extract.InStock:
		out.Status = StatusInStock
		// Alert only on the out-of-stock → in-stock transition, and only
		// once per in-stock run.
		out.Notify = tr.Status == StatusOutOfStock && !tr.NotificationSent
	case extract.OutOfStock:
		out.Status = StatusOutOfStock
	default:
		// No availability signal. Keep the current status; unknown must
		// never silently become in-stock.
		out.Status = tr.Status
	}
	return out
}

func detectChanges(tr Tracking, res extract.Result) Outcome {
	out := Outcome{
		Availability: res.Availability,
		Fingerprint:  res.Fingerprint,
		Items:        res.Items,
		StockText:    res.StockText,
		Status:       StatusActive,
	}

	// The first successful check seeds the baseline and never alerts.
	if tr.Fingerprint != "" && res.Fingerprint != tr.Fingerprint {
		out.Changed = true
		out.Notify = true
		out.NewItems = extract.NewFragments(tr.Items, res.Items)
	}
	return out
}

// Apply is the only place the transition rule exists. It folds a poll
// outcome into the tracking and returns the updated copy.
func Apply(tr Tracking, out Outcome, now time.Time) Tracking {
	tr.LastChecked = now

	if out.Failed {
		tr.ErrorCount++
		if tr.ErrorCount >= ErrorThreshold {
			tr.Status = StatusError
		}
		return tr
	}

	tr.ErrorCount = 0
	tr.Fingerprint = out.Fingerprint
	tr.Items = out.Items
	if out.Changed {
		tr.ChangeCount++
	}
	if out.Status != tr.Status {
		tr.Status = out.Status
		tr.LastStatusChange = now
	}

	// Set only in the update that alerts; cleared on every other success so
	// the next genuine transition can alert again.
	tr.NotificationSent = out.Notify
	return tr
}

// Revive resets an errored tracking back to active. Status transitions out
// of the error state only this way, never from a poll.
func Revive(tr Tracking, now time.Time) Tracking {
	tr.Status = StatusActive
	tr.ErrorCount = 0
	tr.NotificationSent = false
	tr.LastStatusChange = now
	return tr
}
