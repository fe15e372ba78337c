package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/index"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/sources/defaults"
)

// DefaultsReloader handles periodic reloading of the default bookmark set
type DefaultsReloader struct {
	loader        *defaults.Loader
	mapper        *defaults.Mapper
	index         *index.DefaultsIndex
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewDefaultsReloader creates a new reloader. manualTrigger may be nil.
func NewDefaultsReloader(
	defaultsFile string,
	idx *index.DefaultsIndex,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *DefaultsReloader {
	if log == nil {
		log = logger.NewNop()
	}
	return &DefaultsReloader{
		loader:        defaults.NewLoader(defaultsFile),
		mapper:        defaults.NewMapper(),
		index:         idx,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the set once, then reloads it on the interval and on every
// manual trigger. A failing first load is an error.
func (dr *DefaultsReloader) Start(ctx context.Context) error {
	if err := dr.Reload(ctx); err != nil {
		return fmt.Errorf("initial defaults reload failed: %w", err)
	}

	// A zero interval disables periodic reloads; manual triggers still work.
	var tick <-chan time.Time
	var ticker *time.Ticker
	if dr.interval > 0 {
		ticker = time.NewTicker(dr.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := dr.Reload(ctx); err != nil {
					dr.logger.Error("failed to reload defaults, keeping previous set",
						logger.Error(err))
				}
			case <-dr.manualTrigger:
				dr.logger.Info("manual defaults reload triggered")
				if err := dr.Reload(ctx); err != nil {
					dr.logger.Error("failed to reload defaults, keeping previous set",
						logger.Error(err))
				}
			case <-dr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (dr *DefaultsReloader) Stop() {
	dr.stopOnce.Do(func() { close(dr.stopCh) })
}

// Reload reads the file and swaps the index. On error the index is left
// untouched.
func (dr *DefaultsReloader) Reload(_ context.Context) error {
	dr.logger.Info("reloading default bookmarks",
		logger.String("path", dr.loader.Path()))

	doc, err := dr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}

	entries, err := dr.mapper.Map(doc)
	if err != nil {
		return fmt.Errorf("failed to map defaults: %w", err)
	}

	dr.index.Update(entries)

	dr.logger.Info("loaded default bookmarks",
		logger.Int("count", len(entries)))
	return nil
}
