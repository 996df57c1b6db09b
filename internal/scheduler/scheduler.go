// Package scheduler drives background bucket-size aggregation on a fixed
// interval.
//
// The scheduler is an explicit task owned by the process lifecycle: Start
// registers the ticker, Stop tears it down, and RunOnce drives a single
// cycle deterministically for tests. When the gating feature flag is off,
// Start returns without creating any timer — the scheduler is entirely
// inert, not merely skipping work inside a live loop.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vantor/bucketscope/internal/bucketsize"
	"github.com/vantor/bucketscope/internal/flags"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/session"
)

// Config holds scheduler settings.
type Config struct {
	// Interval is the delay between aggregation cycles.
	Interval time.Duration
}

// DefaultConfig returns the production default: hourly cycles.
func DefaultConfig() *Config {
	return &Config{Interval: time.Hour}
}

// Scheduler periodically aggregates bucket sizes for every bucket any live
// session has touched.
type Scheduler struct {
	sessions *session.Store
	agg      *bucketsize.Aggregator
	flags    flags.Provider
	cfg      *Config
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cyclesTotal atomic.Uint64
}

// New returns a stopped scheduler.
func New(sessions *session.Store, agg *bucketsize.Aggregator, flagProvider flags.Provider, cfg *Config, log *logger.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sessions: sessions,
		agg:      agg,
		flags:    flagProvider,
		cfg:      cfg,
		log:      log.With().Str("component", "scheduler").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the periodic task. The feature flag is checked here, not
// inside the loop: a disabled scheduler owns no ticker and no goroutine.
func (s *Scheduler) Start() {
	if enabled, _ := s.flags.Enabled(s.ctx, flags.FlagBackgroundBucketSize); !enabled {
		s.log.Info("background aggregation disabled by feature flag")
		return
	}

	s.wg.Add(1)
	go s.run()
	s.log.Infof("background aggregation started, interval %s", s.cfg.Interval)
}

// Stop cancels the periodic task and waits for any in-progress cycle.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// CyclesTotal returns how many cycles have completed since Start.
func (s *Scheduler) CyclesTotal() uint64 {
	return s.cyclesTotal.Load()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce executes a single aggregation cycle: enumerate live sessions,
// resolve each session's tracked buckets, and compute sizes without force —
// buckets with fresh results or a concurrent worker are skipped cheaply.
// One bucket's failure never aborts the rest of the cycle.
func (s *Scheduler) RunOnce(ctx context.Context) {
	defer s.cyclesTotal.Add(1)

	tokens, err := s.sessions.Tokens(ctx)
	if err != nil {
		s.log.Warnf("session enumeration failed, skipping cycle: %v", err)
		return
	}

	for _, token := range tokens {
		// Peek rather than Lookup: a background cycle must not slide
		// every session's expiry forward.
		creds, err := s.sessions.Peek(ctx, token)
		if err != nil {
			continue
		}

		buckets, err := s.sessions.TrackedBuckets(ctx, token)
		if err != nil {
			s.log.Warnf("tracked-bucket read failed: %v", err)
			continue
		}

		for _, bucket := range buckets {
			if ctx.Err() != nil {
				return
			}
			status, err := s.agg.ComputeWithLock(ctx, bucket, creds, false)
			if err != nil {
				s.log.With().Str("bucket", bucket).Err(err).Logger().
					Warn("bucket-size aggregation failed")
				continue
			}
			s.log.With().Str("bucket", bucket).Str("status", string(status)).Logger().
				Debug("bucket-size aggregation attempted")
		}
	}
}
