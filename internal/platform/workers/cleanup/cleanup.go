// Package cleanup runs periodic sweeps that reclaim expired in-memory state.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned by Start when the worker is already running.
var ErrAlreadyStarted = errors.New("cleanup worker already started")

// Sweeper removes expired entries and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (removed int, err error)
}

// SweeperFunc adapts a function to Sweeper.
type SweeperFunc func(ctx context.Context) (int, error)

func (f SweeperFunc) Sweep(ctx context.Context) (int, error) {
	return f(ctx)
}

// Result contains the results of a cleanup run.
type Result struct {
	Removed  int
	Duration time.Duration
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// Worker calls its Sweeper on a ticker until stopped.
type Worker struct {
	name     string
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	metrics  *Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New creates a worker. name prefixes the log events, e.g. "ratelimit"
// logs ratelimit_cleanup_completed.
func New(name string, sweeper Sweeper, opts ...Option) *Worker {
	w := &Worker{
		name:     name,
		sweeper:  sweeper,
		logger:   slog.Default(),
		interval: time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the worker's name.
func (w *Worker) Name() string {
	return w.name
}

// Start sweeps every interval and blocks until ctx is done or Stop is
// called. It returns nil on either, so it can run directly in an errgroup.
// A worker cannot be restarted after Stop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	if w.done != nil {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	done := w.done
	w.mu.Unlock()

	defer close(done)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			w.logger.Info(w.name+"_cleanup_stopping", "reason", context.Cause(ctx))
			return nil
		}
	}
}

// Stop cancels a running Start and waits for it to return, so no goroutine
// or ticker outlives the call. It is safe to call more than once, and
// before Start.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Worker) tick(ctx context.Context) {
	res, err := w.RunOnce(ctx)
	if err != nil {
		// A sweep cut short by shutdown is not a failure worth alerting on.
		if ctx.Err() != nil {
			return
		}
		w.logger.Error(w.name+"_cleanup_failed",
			"error", err,
			"duration_ms", res.Duration.Milliseconds(),
		)
		if w.metrics != nil {
			w.metrics.observe(w.name, "error", res.Removed, res.Duration.Seconds())
		}
		return
	}

	w.logger.Info(w.name+"_cleanup_completed",
		"removed", res.Removed,
		"duration_ms", res.Duration.Milliseconds(),
	)
	if w.metrics != nil {
		w.metrics.observe(w.name, "success", res.Removed, res.Duration.Seconds())
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller (Start).
// The returned Result is never nil.
func (w *Worker) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()
	removed, err := w.sweeper.Sweep(ctx)
	return &Result{Removed: removed, Duration: time.Since(start)}, err
}
