package fetch

import (
	"context"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/shelfwatch/shelfwatch/internal/logger"
)

// Browser supervises the process-wide headless Chrome allocator. It is
// created lazily on first use and transparently re-created when found
// closed: "handle closed" is a recoverable precondition, not an error
// class of its own.
type Browser struct {
	mu       sync.Mutex
	allocCtx context.Context
	cancel   context.CancelFunc
	opts     []chromedp.ExecAllocatorOption
}

// NewBrowser creates a browser supervisor. No Chrome process is started
// until the first Alloc call.
func NewBrowser(userAgent string) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)
	return &Browser{opts: opts}
}

// Alloc returns the shared allocator context, creating or re-creating the
// underlying browser if needed.
func (b *Browser) Alloc() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allocCtx == nil || b.allocCtx.Err() != nil {
		b.createLocked()
	}
	return b.allocCtx
}

// Recreate tears down the current browser and starts a fresh one. Callers
// use it after a fetch failed with a dead-browser error.
func (b *Browser) Recreate() {
	b.mu.Lock()
	defer b.mu.Unlock()

	logger.Warn("browser found closed, reinitializing")
	if b.cancel != nil {
		b.cancel()
	}
	b.createLocked()
}

func (b *Browser) createLocked() {
	b.allocCtx, b.cancel = chromedp.NewExecAllocator(context.Background(), b.opts...)
	logger.Info("headless browser allocator created")
}

// Alive reports whether an allocator currently exists and is not canceled.
func (b *Browser) Alive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocCtx != nil && b.allocCtx.Err() == nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
		b.allocCtx = nil
	}
	return nil
}

// deadBrowser reports whether an error indicates the underlying browser or
// session is gone, as opposed to a page-level failure.
func deadBrowser(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"browser has been closed",
		"target closed",
		"context canceled",
		"websocket url timeout",
		"websocket: close",
		"connection refused",
		"chrome failed to start",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
