package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slotengine/internal/events"

	"golang.org/x/sync/errgroup"
)

// preloadConcurrency bounds the goroutines PreloadRange runs at once.
const preloadConcurrency = 8

// PreloadRange warms the cache for every (date, service) pair from start to
// end inclusive. An empty serviceIDs warms all active services.
func (f *Facade) PreloadRange(ctx context.Context, start, end time.Time, serviceIDs []string) error {
	now := f.clock.Now()
	from, to := f.normalize(start, now), f.normalize(end, now)
	if to.Before(from) {
		return fmt.Errorf("preload range end %s is before start %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	if len(serviceIDs) == 0 {
		for _, svc := range f.activeServices() {
			serviceIDs = append(serviceIDs, svc.ID)
		}
	}

	load := f.loader(ctx, now)
	if _, err := load(); err != nil {
		return fmt.Errorf("failed to load bookings: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)

	count := 0
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		for _, id := range serviceIDs {
			count++
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				f.day(gctx, date, id, now, load)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.logger.Debug().
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Int("entries", count).
		Msg("availability preloaded")
	return nil
}

// HandleBookingEvent invalidates the date a booking event refers to. It is
// meant to be subscribed to the booking event types on the event bus.
func (f *Facade) HandleBookingEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	if payload.Date.IsZero() {
		f.InvalidateAll(context.Background())
		return nil
	}
	f.InvalidateDate(context.Background(), payload.Date)
	return nil
}
