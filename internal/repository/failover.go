package repository

import (
	"context"
	"sync/atomic"
	"time"

	"slotengine/internal/domain"
	"slotengine/internal/models"

	"github.com/rs/zerolog"
)

const retryPrimaryAfter = time.Minute

// FailoverAvailabilityStore serves from primary and switches to fallback on
// the first primary error. Primary is retried once a minute; on recovery it
// is wiped, since it missed every invalidation made while it was down.
type FailoverAvailabilityStore struct {
	primary   domain.AvailabilityStore
	fallback  domain.AvailabilityStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverAvailabilityStore(primary, fallback domain.AvailabilityStore, logger *zerolog.Logger) *FailoverAvailabilityStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverAvailabilityStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// IsDown reports whether requests are currently served by the fallback.
func (r *FailoverAvailabilityStore) IsDown() bool {
	return r.isDown.Load()
}

func (r *FailoverAvailabilityStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary availability store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverAvailabilityStore) usePrimary(ctx context.Context) bool {
	if !r.isDown.Load() {
		return true
	}
	if r.now().Sub(time.Unix(0, r.lastCheck.Load())) <= retryPrimaryAfter {
		return false
	}
	if err := r.primary.InvalidateAll(ctx); err != nil {
		r.lastCheck.Store(r.now().UnixNano())
		return false
	}
	r.isDown.Store(false)
	r.logger.Info().Msg("Primary availability store recovered")
	return true
}

func (r *FailoverAvailabilityStore) GetDay(ctx context.Context, date time.Time, serviceID string) (*models.DayAvailability, error) {
	if r.usePrimary(ctx) {
		day, err := r.primary.GetDay(ctx, date, serviceID)
		if err == nil {
			return day, nil
		}
		r.markDown(err)
	}

	return r.fallback.GetDay(ctx, date, serviceID)
}

func (r *FailoverAvailabilityStore) PutDay(ctx context.Context, day models.DayAvailability) error {
	if r.usePrimary(ctx) {
		err := r.primary.PutDay(ctx, day)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.PutDay(ctx, day)
}

// InvalidateDate always clears the fallback so it holds nothing stale when
// it is needed next.
func (r *FailoverAvailabilityStore) InvalidateDate(ctx context.Context, date time.Time) error {
	if err := r.fallback.InvalidateDate(ctx, date); err != nil {
		return err
	}
	if r.usePrimary(ctx) {
		if err := r.primary.InvalidateDate(ctx, date); err != nil {
			r.markDown(err)
		}
	}
	return nil
}

func (r *FailoverAvailabilityStore) InvalidateAll(ctx context.Context) error {
	if err := r.fallback.InvalidateAll(ctx); err != nil {
		return err
	}
	if r.usePrimary(ctx) {
		if err := r.primary.InvalidateAll(ctx); err != nil {
			r.markDown(err)
		}
	}
	return nil
}
