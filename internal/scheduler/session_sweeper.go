package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

const (
	// DefaultSweepInterval is how often the sweeper runs
	DefaultSweepInterval = time.Hour
	// DefaultSweepHorizon is the age after which a relay session is deleted
	DefaultSweepHorizon = time.Hour
)

// SessionSweeper deletes relay sessions nobody cleaned up: tabs that were
// closed mid-flow, phones that never submitted.
type SessionSweeper struct {
	backend  relay.SweepBackend
	logger   logger.Logger
	interval time.Duration
	horizon  time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionSweeper creates a new sweeper. Zero durations take the defaults.
func NewSessionSweeper(
	backend relay.SweepBackend,
	log logger.Logger,
	interval time.Duration,
	horizon time.Duration,
) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if horizon <= 0 {
		horizon = DefaultSweepHorizon
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &SessionSweeper{
		backend:  backend,
		logger:   log,
		interval: interval,
		horizon:  horizon,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval
func (s *SessionSweeper) Start(ctx context.Context) error {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper
func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Sweep deletes every session created at or before now minus the horizon
// and returns how many were deleted. Failures are logged, never returned.
func (s *SessionSweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.horizon)

	ids, err := s.backend.CreatedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to list old relay sessions",
			logger.Error(err))
		return 0
	}

	deleted := 0
	for _, id := range ids {
		if err := s.backend.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete relay session",
				logger.String("session_id", id),
				logger.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Infof("cleaned up %d old relay sessions", deleted)
	} else {
		s.logger.Debug("no relay sessions to clean up")
	}
	return deleted
}
