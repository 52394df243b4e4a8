package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/track"
)

// RunnerConfig tunes the poll scheduler.
type RunnerConfig struct {
	// CycleInterval is the wall-clock spacing between poll cycles.
	CycleInterval time.Duration

	// BatchSize is the concurrency ceiling within a cycle.
	BatchSize int

	// BatchPause is the delay inserted between batches, backpressure
	// toward the target sites.
	BatchPause time.Duration

	// DueLimit caps the items selected per cycle.
	DueLimit int
}

// DefaultRunnerConfig matches production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		CycleInterval: 60 * time.Minute,
		BatchSize:     5,
		BatchPause:    2 * time.Second,
		DueLimit:      100,
	}
}

// Runner executes poll cycles: select due trackings, check them in bounded
// concurrent batches, pace between batches. Overlapping cycles are
// prevented; a cycle that outlives the interval causes the next tick to be
// skipped, not queued.
type Runner struct {
	checker *Checker
	store   Storage
	config  RunnerConfig
	busy    atomic.Bool
}

// NewRunner builds a runner around a checker.
func NewRunner(checker *Checker, store Storage, cfg RunnerConfig) *Runner {
	def := DefaultRunnerConfig()
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = def.CycleInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = def.BatchPause
	}
	if cfg.DueLimit <= 0 {
		cfg.DueLimit = def.DueLimit
	}

	return &Runner{
		checker: checker,
		store:   store,
		config:  cfg,
	}
}

// Run executes an immediate cycle and then one per interval until the
// context is canceled. A running cycle is not cancelled mid-flight; Run
// returns after the current cycle finishes.
func (r *Runner) Run(ctx context.Context) error {
	logger.Info("poll scheduler started",
		"interval", r.config.CycleInterval, "batch_size", r.config.BatchSize)

	ticker := time.NewTicker(r.config.CycleInterval)
	defer ticker.Stop()

	r.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("poll scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Cycle(ctx)
		}
	}
}

// Cycle runs one poll cycle. Concurrent invocations beyond the first are
// rejected.
func (r *Runner) Cycle(ctx context.Context) {
	if !r.busy.CompareAndSwap(false, true) {
		logger.Warn("previous poll cycle still running, skipping this one")
		return
	}
	defer r.busy.Store(false)

	started := time.Now()
	due, err := r.store.Due(ctx, started.UTC(), r.config.DueLimit)
	if err != nil {
		logger.Error("failed to select due trackings", "error", err)
		return
	}
	if len(due) == 0 {
		logger.Debug("poll cycle: nothing due")
		return
	}
	logger.Info("poll cycle started", "due", len(due))

	var checked int
	for start := 0; start < len(due); start += r.config.BatchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+r.config.BatchSize, len(due))
		r.runBatch(ctx, due[start:end])
		checked += end - start

		// The pause runs after every non-final batch regardless of how long
		// the batch itself took.
		if end < len(due) {
			if !r.pause(ctx) {
				break
			}
		}
	}

	logger.Info("poll cycle finished",
		"checked", checked, "elapsed", time.Since(started).Round(time.Millisecond))
}

// pause sleeps for the configured batch pause, reporting false when the
// context was canceled instead.
func (r *Runner) pause(ctx context.Context) bool {
	timer := time.NewTimer(r.config.BatchPause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runBatch checks every tracking in the slice fully concurrently. A failing
// item never aborts its batch.
func (r *Runner) runBatch(ctx context.Context, batch []track.Tracking) {
	var wg sync.WaitGroup
	for _, tr := range batch {
		wg.Add(1)
		go func(tr track.Tracking) {
			defer wg.Done()
			if err := r.checker.Check(ctx, tr); err != nil {
				logger.Error("check failed to persist", "tracking", tr.ID, "error", err)
			}
		}(tr)
	}
	wg.Wait()
}
