// Package worker runs the gateway's periodic background loops: inbox
// draining, licence dispatch, and LITE usage delivery.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop runs a named task on a fixed interval until its context is
// cancelled. An initial tick fires immediately on start. Consecutive
// failures stretch the interval by doubling it, up to BackoffLimit
// doublings; the first success snaps it back.
type Loop struct {
	Name     string
	Interval time.Duration
	Tick     func(ctx context.Context) error
	Log      *slog.Logger

	// BackoffLimit caps how many times the interval may double after
	// consecutive failures. Zero means no backoff.
	BackoffLimit int
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	log := l.Log.With("worker", l.Name)
	log.Info("worker starting", "interval", l.Interval)

	failures := l.tick(ctx, 0, log)

	ticker := time.NewTicker(l.delay(failures))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping")
			return
		case <-ticker.C:
			failures = l.tick(ctx, failures, log)
			ticker.Reset(l.delay(failures))
		}
	}
}

func (l *Loop) tick(ctx context.Context, failures int, log *slog.Logger) int {
	if err := l.Tick(ctx); err != nil {
		failures++
		log.Error("tick failed", "error", err, "consecutive_failures", failures)
		return failures
	}
	if failures > 0 {
		log.Info("worker recovered", "after_failures", failures)
	}
	return 0
}

func (l *Loop) delay(failures int) time.Duration {
	shift := failures
	if shift > l.BackoffLimit {
		shift = l.BackoffLimit
	}
	d := l.Interval
	for i := 0; i < shift; i++ {
		d *= 2
	}
	return d
}

// RunAll starts every loop in its own goroutine and blocks until all of
// them have stopped.
func RunAll(ctx context.Context, loops ...*Loop) {
	var wg sync.WaitGroup
	for _, l := range loops {
		wg.Add(1)
		go func(l *Loop) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}
	wg.Wait()
}
