package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/sources/seed"
)

// SeedReloader imports the seed file at startup and again on every tick or
// manual trigger, so profiles added to the file appear without a restart.
type SeedReloader struct {
	loader        *seed.Loader
	mapper        *seed.Mapper
	creator       seed.Creator
	logger        logger.Logger
	interval      time.Duration
	manualTrigger <-chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewSeedReloader creates a reloader for seedFile. interval <= 0 disables the
// periodic import; manualTrigger may be nil.
func NewSeedReloader(
	seedFile string,
	creator seed.Creator,
	log logger.Logger,
	interval time.Duration,
	manualTrigger <-chan struct{},
) *SeedReloader {
	return &SeedReloader{
		loader:        seed.NewLoader(seedFile),
		mapper:        seed.NewMapper(nil),
		creator:       creator,
		logger:        log,
		interval:      interval,
		manualTrigger: manualTrigger,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start imports once and returns its error, then keeps reloading in the background.
func (sr *SeedReloader) Start(ctx context.Context) error {
	if _, err := sr.Reload(ctx); err != nil {
		close(sr.done)
		return fmt.Errorf("initial seed import failed: %w", err)
	}

	go func() {
		defer close(sr.done)

		var tick <-chan time.Time
		if sr.interval > 0 {
			ticker := time.NewTicker(sr.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				sr.reloadLogged(ctx)
			case <-sr.manualTrigger:
				sr.logger.Info("manual seed reload triggered")
				sr.reloadLogged(ctx)
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the background loop and waits for it to exit.
func (sr *SeedReloader) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
	<-sr.done
}

// Reload loads, validates and imports the seed file.
func (sr *SeedReloader) Reload(ctx context.Context) (seed.Result, error) {
	file, err := sr.loader.Load()
	if err != nil {
		return seed.Result{}, err
	}

	profiles, err := sr.mapper.MapProfiles(file)
	if err != nil {
		return seed.Result{}, fmt.Errorf("invalid seed file: %w", err)
	}

	res, err := seed.Import(ctx, sr.creator, profiles, sr.logger)
	if err != nil {
		return res, err
	}

	sr.logger.Info("seed file imported",
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped))
	return res, nil
}

func (sr *SeedReloader) reloadLogged(ctx context.Context) {
	if _, err := sr.Reload(ctx); err != nil {
		sr.logger.Error("failed to reload seed file", logger.Error(err))
	}
}
