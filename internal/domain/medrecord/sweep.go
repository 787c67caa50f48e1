package medrecord

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/klinik/klinik/internal/platform/clock"
)

// Sweeper locks records older than the configured age. Locking is one-way:
// the sweep only ever flips is_locked false→true, so overlapping or
// repeated runs converge on the same result.
type Sweeper struct {
	repo      Repository
	clock     clock.Clock
	lockAfter time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	done      chan struct{}
}

func NewSweeper(repo Repository, clk clock.Clock, lockAfter, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		clock:     clk,
		lockAfter: lockAfter,
		interval:  interval,
		logger:    logger.With().Str("component", "record_sweeper").Logger(),
		done:      make(chan struct{}),
	}
}

// Run executes a single sweep. The cutoff is taken from the clock at call
// time, so records that were too young on one run age into the next.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.lockAfter)

	locked, err := s.repo.LockCreatedBefore(ctx, cutoff, now)
	if err != nil {
		s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("record lock sweep failed")
		return 0, err
	}
	if locked > 0 {
		s.logger.Info().Int64("locked", locked).Time("cutoff", cutoff).Msg("locked aged medical records")
	}
	return locked, nil
}

// Start runs the sweep on a ticker until Stop is called or ctx ends. An
// immediate first run catches records that aged while the server was down.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("initial sweep failed, will retry on ticker")
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Run(ctx)
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.done)
}
