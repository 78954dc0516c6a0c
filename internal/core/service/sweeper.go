package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/norlun/tokengate-go/internal/telemetry/logger"
	"github.com/norlun/tokengate-go/internal/telemetry/metric"
)

// MinSweepInterval is the floor for the periodic sweep cadence.
const MinSweepInterval = 30 * time.Second

// DefaultSweepTimeout bounds a single sweep pass.
const DefaultSweepTimeout = 30 * time.Second

// SweepIntervalFor derives the sweep cadence from the token TTL: half
// the TTL, never below MinSweepInterval. A non-positive TTL gets the
// floor outright.
func SweepIntervalFor(ttlSeconds int64) time.Duration {
	if ttlSeconds <= 0 {
		return MinSweepInterval
	}
	half := time.Duration(ttlSeconds) * time.Second / 2
	if half < MinSweepInterval {
		return MinSweepInterval
	}
	return half
}

// SweeperConfig holds the knobs of the background sweeper.
type SweeperConfig struct {
	// Interval overrides the sweep cadence. Zero derives it from the
	// manager's TTL via SweepIntervalFor.
	Interval time.Duration

	// Timeout bounds a single sweep pass. Zero means
	// DefaultSweepTimeout.
	Timeout time.Duration

	// Logger receives run events. Defaults to the manager's logger.
	Logger logger.Logger
}

// Sweeper periodically removes expired token records through its
// manager.
//
// A pass that fails is logged and counted, never fatal; the next tick
// tries again.
type Sweeper struct {
	mgr      *TokenManager
	interval atomic.Int64 // nanoseconds
	timeout  time.Duration
	metrics  *metric.Registry
	log      logger.Logger

	resetCh chan struct{}
}

// NewSweeper creates a sweeper bound to the given manager. A nil cfg
// derives everything from the manager.
func NewSweeper(mgr *TokenManager, cfg *SweeperConfig) *Sweeper {
	if cfg == nil {
		cfg = &SweeperConfig{}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = SweepIntervalFor(mgr.TTLSeconds())
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSweepTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = mgr.log
	}

	s := &Sweeper{
		mgr:     mgr,
		timeout: timeout,
		metrics: mgr.Metrics(),
		log:     log,
		resetCh: make(chan struct{}, 1),
	}
	s.interval.Store(int64(interval))
	return s
}

// Interval returns the effective sweep cadence.
func (s *Sweeper) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetInterval changes the sweep cadence, with the same semantics as
// the construction-time override: a non-positive value derives the
// cadence from the manager's TTL. A running loop picks the change up
// immediately.
func (s *Sweeper) SetInterval(d time.Duration) {
	if d <= 0 {
		d = SweepIntervalFor(s.mgr.TTLSeconds())
	}
	if s.interval.Swap(int64(d)) == int64(d) {
		return
	}
	select {
	case s.resetCh <- struct{}{}:
	default:
	}
}

// Run sweeps once immediately, then on the configured cadence until
// ctx is canceled. It returns ctx.Err() on cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("sweeper started", "interval", s.Interval().String())

	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return ctx.Err()
		case <-s.resetCh:
			interval := s.Interval()
			ticker.Reset(interval)
			s.log.Debug("sweep cadence reset", "interval", interval.String())
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs a single bounded sweep pass. Each pass carries a
// run id so overlapping log lines correlate.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log := s.log.With("sweep_run", ulid.Make().String())

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	removed, err := s.mgr.Sweep(runCtx)
	elapsed := time.Since(start)
	s.metrics.SweepDuration.Observe(elapsed.Seconds())

	if err != nil {
		s.metrics.SweepRuns.WithLabelValues(metric.StatusError).Inc()
		log.Error("sweep failed", "error", err, "elapsed", elapsed.String())
		return
	}
	s.metrics.SweepRuns.WithLabelValues(metric.StatusOK).Inc()
	log.Debug("sweep completed", "removed", removed, "elapsed", elapsed.String())
}
