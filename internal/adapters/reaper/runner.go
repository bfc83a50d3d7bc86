// Package reaper periodically drops expired sessions from stores that do
// not expire records on their own.
package reaper

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/lotledger/lotledger/internal/observability/metrics"
	"github.com/lotledger/lotledger/internal/observability/statsd"
)

const defaultInterval = time.Minute

// Sweeper removes expired records and reports how many were dropped.
type Sweeper interface {
	Sweep() int
}

// Runner runs the sweep loop.
type Runner struct {
	store    Sweeper
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Store    Sweeper
	Interval time.Duration
	Logger   *slog.Logger
	// Metrics is optional.
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		store:    opts.Store,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "session_reaper"),
		metrics:  opts.Metrics,
	}, nil
}

// Run sweeps at the configured interval until ctx is cancelled.
// Cancellation is a graceful stop and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting session reaper", "interval", r.interval)
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.sweep(ctx)
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if n := r.store.Sweep(); n > 0 {
		r.logger.DebugContext(ctx, "expired sessions removed", "count", n)
		metrics.EmitSessionsSwept(r.metrics, n)
	}
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (r *Runner) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
