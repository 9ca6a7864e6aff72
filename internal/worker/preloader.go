package worker

import (
	"context"
	"time"

	"slotengine/internal/domain"
	"slotengine/internal/models"

	"github.com/rs/zerolog"
)

// RangeWarmer fills the availability cache for a date range.
type RangeWarmer interface {
	PreloadRange(ctx context.Context, start, end time.Time, serviceIDs []string) error
}

// Preloader periodically warms [today, today+horizonDays) for all active services.
type Preloader struct {
	warmer      RangeWarmer
	clock       domain.Clock
	horizonDays int
	interval    time.Duration
	retry       RetryPolicy
	logger      *zerolog.Logger
}

func NewPreloader(warmer RangeWarmer, clock domain.Clock, horizonDays int, interval time.Duration, retry RetryPolicy, logger *zerolog.Logger) *Preloader {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if horizonDays <= 0 {
		horizonDays = models.DefaultPreloadHorizonDays
	}
	if interval <= 0 {
		interval = models.DefaultPreloadInterval * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Preloader{
		warmer:      warmer,
		clock:       clock,
		horizonDays: horizonDays,
		interval:    interval,
		retry:       retry,
		logger:      logger,
	}
}

// RunOnce warms the current horizon, retrying per the retry policy.
func (p *Preloader) RunOnce(ctx context.Context) error {
	start := models.DateOf(p.clock.Now())
	end := start.AddDate(0, 0, p.horizonDays-1)

	started := time.Now()
	err := p.retry.Do(ctx, func(attempt int) error {
		err := p.warmer.PreloadRange(ctx, start, end, nil)
		if err != nil {
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("preload failed")
		}
		return err
	})
	if err != nil {
		return err
	}

	p.logger.Debug().
		Str("from", models.DateKey(start)).
		Str("to", models.DateKey(end)).
		Dur("took", time.Since(started)).
		Msg("preload finished")
	return nil
}

// Start runs RunOnce immediately and then every interval until ctx is done.
func (p *Preloader) Start(ctx context.Context) {
	p.logger.Info().Int("horizon_days", p.horizonDays).Dur("interval", p.interval).Msg("preloader started")
	defer p.logger.Info().Msg("preloader stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Msg("preload gave up")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
