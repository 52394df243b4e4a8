package monitor

import (
	"context"

	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/track"
)

// LogNotifier writes alerts to the log. Used by the CLI when no real
// delivery channel is wired in.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, tr track.Tracking, message string, newItems []string) error {
	logger.Info("ALERT",
		"tracking", tr.ID,
		"owner", tr.OwnerID,
		"url", tr.URL,
		"message", message,
		"new_items", len(newItems))
	return nil
}
