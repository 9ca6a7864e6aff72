// Package availability caches computed slot grids. Day entries stay valid
// until their date has fully elapsed and week entries until their last day
// has; structural changes are pushed in through explicit invalidation.
package availability

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"slotengine/internal/config"
	"slotengine/internal/domain"
	"slotengine/internal/metrics"
	"slotengine/internal/models"
	"slotengine/internal/rules"
	"slotengine/internal/slots"
	"slotengine/internal/validation"

	"github.com/rs/zerolog"
)

const (
	kindDay  = "day"
	kindWeek = "week"

	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
	resultStore = "store"
)

// DayOptions tunes a GetDay response.
type DayOptions struct {
	OnlyAvailable bool
}

// NextSlot is a bookable date and start time.
type NextSlot struct {
	Date time.Time        `json:"date"`
	Time models.ClockTime `json:"time"`
}

// Stats reports how many entries the cache currently holds.
type Stats struct {
	Days  int `json:"days"`
	Weeks int `json:"weeks"`
}

type cacheKey struct {
	date      string
	serviceID string
}

type weekEntry struct {
	week models.WeekAvailability
	// dates holds the keys of every day in the week for invalidation lookups.
	dates [7]string
}

// cacheState is never mutated after it is published.
type cacheState struct {
	days  map[cacheKey]models.DayAvailability
	weeks map[cacheKey]weekEntry
}

func emptyState() *cacheState {
	return &cacheState{
		days:  map[cacheKey]models.DayAvailability{},
		weeks: map[cacheKey]weekEntry{},
	}
}

type Facade struct {
	rules    domain.BusinessRulesProvider
	bookings domain.BookingRepository
	catalog  domain.ServiceCatalog
	clock    domain.Clock
	store    domain.AvailabilityStore
	logger   *zerolog.Logger

	state atomic.Pointer[cacheState]

	// mu serializes writers; readers only load state.
	mu sync.Mutex
	// storeMu orders second-level store writes against store invalidations.
	storeMu sync.Mutex
	// generation is bumped by every invalidation. A computation started under
	// an older generation is not written back.
	generation atomic.Uint64
}

// NewFacade builds a facade. A nil provider falls back to the default rules,
// clock defaults to the system clock and store may be nil.
func NewFacade(
	provider domain.BusinessRulesProvider,
	bookings domain.BookingRepository,
	catalog domain.ServiceCatalog,
	clock domain.Clock,
	store domain.AvailabilityStore,
	logger *zerolog.Logger,
) *Facade {
	if provider == nil {
		provider = rules.NewStaticProvider(config.RulesConfig{})
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "availability").Logger()

	f := &Facade{
		rules:    provider,
		bookings: bookings,
		catalog:  catalog,
		clock:    clock,
		store:    store,
		logger:   &l,
	}
	f.state.Store(emptyState())
	return f
}

// loadedSnapshot carries the generation read before the bookings were loaded.
// Results computed from the snapshot are only cached under that generation.
type loadedSnapshot struct {
	snap validation.Snapshot
	gen  uint64
}

// snapshotFunc loads the booking snapshot at most once per public call.
type snapshotFunc func() (loadedSnapshot, error)

func (f *Facade) loader(ctx context.Context, now time.Time) snapshotFunc {
	return sync.OnceValues(func() (loadedSnapshot, error) {
		gen := f.generation.Load()
		var bookings []models.Booking
		if f.bookings != nil {
			var err error
			if bookings, err = f.bookings.ListBookings(ctx); err != nil {
				return loadedSnapshot{}, err
			}
		}
		return loadedSnapshot{snap: validation.NewSnapshot(f.rules, bookings, now), gen: gen}, nil
	})
}

// GetDay returns the slot grid for date and serviceID. A failure to load
// bookings yields an empty day that is not cached.
func (f *Facade) GetDay(ctx context.Context, date time.Time, serviceID string, opts DayOptions) models.DayAvailability {
	now := f.clock.Now()
	day := f.day(ctx, f.normalize(date, now), serviceID, now, f.loader(ctx, now))
	if opts.OnlyAvailable {
		return day.OnlyAvailable()
	}
	return day.Clone()
}

func (f *Facade) day(ctx context.Context, date time.Time, serviceID string, now time.Time, load snapshotFunc) models.DayAvailability {
	key := cacheKey{date: models.DateKey(date), serviceID: serviceID}
	today := models.DateOf(now)

	if cached, ok := f.state.Load().days[key]; ok {
		if !cached.Date.Before(today) {
			metrics.IncCacheRequest(kindDay, resultHit)
			return f.trimElapsed(cached, now)
		}
		metrics.IncCacheRequest(kindDay, resultStale)
	} else {
		metrics.IncCacheRequest(kindDay, resultMiss)
	}

	gen := f.generation.Load()

	if f.store != nil {
		stored, err := f.store.GetDay(ctx, date, serviceID)
		if err != nil {
			f.logger.Warn().Err(err).Str("date", key.date).Str("service_id", serviceID).Msg("availability store read failed")
		} else if stored != nil && !stored.Date.Before(today) {
			metrics.IncCacheRequest(kindDay, resultStore)
			f.putDay(gen, key, *stored, today)
			return f.trimElapsed(*stored, now)
		}
	}

	loaded, err := load()
	if err != nil {
		f.logger.Error().Err(err).Str("date", key.date).Msg("failed to load bookings")
		working := validation.New(validation.NewSnapshot(f.rules, nil, now)).CanBookOnDate(date)
		return models.NewDayAvailability(date, serviceID, working, nil)
	}

	started := time.Now()
	computed := slots.Day(loaded.snap, f.catalog, date, serviceID)
	metrics.ObserveSlotGeneration(time.Since(started))

	f.logger.Debug().
		Str("date", key.date).
		Str("service_id", serviceID).
		Int("slots", computed.TotalSlots).
		Int("available", computed.AvailableSlots).
		Msg("availability computed")

	if f.putDay(loaded.gen, key, computed, today) && f.store != nil {
		f.storeDay(ctx, loaded.gen, computed)
	}
	return computed
}

// storeDay writes day to the second-level store unless an invalidation ran
// after gen was read. Store invalidations take storeMu after bumping the
// generation, so a write that passes the check lands before them.
func (f *Facade) storeDay(ctx context.Context, gen uint64, day models.DayAvailability) {
	f.storeMu.Lock()
	defer f.storeMu.Unlock()
	if f.generation.Load() != gen {
		return
	}
	if err := f.store.PutDay(ctx, day); err != nil {
		f.logger.Warn().Err(err).Str("date", models.DateKey(day.Date)).Str("service_id", day.ServiceID).Msg("availability store write failed")
	}
}

// trimElapsed drops slots of a cached day that have started, or fallen inside
// the lead time, since the day was computed.
func (f *Facade) trimElapsed(day models.DayAvailability, now time.Time) models.DayAvailability {
	lead := time.Duration(f.rules.MinLeadTimeMinutes()) * time.Minute
	if day.Date.After(models.DateOf(now.Add(lead))) {
		return day
	}
	engine := validation.New(validation.NewSnapshot(f.rules, nil, now))
	kept := make([]models.TimeSlot, 0, len(day.Slots))
	for _, slot := range day.Slots {
		if engine.IsPastOnDate(day.Date, slot.Time) || !engine.CanBookWithLeadTime(day.Date, slot.Time) {
			continue
		}
		kept = append(kept, slot)
	}
	if len(kept) == len(day.Slots) {
		return day
	}
	return models.NewDayAvailability(day.Date, day.ServiceID, day.IsWorkingDay, kept)
}

// cacheable reports whether entries for date may be kept. Elapsed dates and
// dates past the booking horizon are computed on every request instead.
func (f *Facade) cacheable(date, today time.Time) bool {
	if date.Before(today) {
		return false
	}
	horizon := f.rules.AdvanceBookingDays()
	if horizon <= 0 || horizon > models.MaxHorizonDays {
		horizon = models.MaxHorizonDays
	}
	return !date.After(today.AddDate(0, 0, horizon))
}

// putDay publishes a new state with the entry added and elapsed days dropped.
// It reports false when an invalidation happened after gen was read or the
// date is not cacheable.
func (f *Facade) putDay(gen uint64, key cacheKey, day models.DayAvailability, today time.Time) bool {
	if !f.cacheable(day.Date, today) {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation.Load() != gen {
		return false
	}

	cur := f.state.Load()
	next := &cacheState{
		days:  make(map[cacheKey]models.DayAvailability, len(cur.days)+1),
		weeks: cur.weeks,
	}
	for k, v := range cur.days {
		if !v.Date.Before(today) {
			next.days[k] = v
		}
	}
	next.days[key] = day
	f.state.Store(next)
	return true
}

// GetWeek returns seven consecutive days starting at weekStart. An empty
// serviceID merges every active service: a time is available in the merged
// view when at least one service has it available.
func (f *Facade) GetWeek(ctx context.Context, weekStart time.Time, serviceID string) models.WeekAvailability {
	now := f.clock.Now()
	start := f.normalize(weekStart, now)
	today := models.DateOf(now)

	keyService := serviceID
	if keyService == "" {
		keyService = models.AllServicesKey
	}
	key := cacheKey{date: models.DateKey(start), serviceID: keyService}

	if cached, ok := f.state.Load().weeks[key]; ok {
		if !cached.week.WeekEnd.Before(today) {
			metrics.IncCacheRequest(kindWeek, resultHit)
			return cloneWeek(cached.week)
		}
		metrics.IncCacheRequest(kindWeek, resultStale)
	} else {
		metrics.IncCacheRequest(kindWeek, resultMiss)
	}

	load := f.loader(ctx, now)
	loaded, err := load()
	if err != nil {
		f.logger.Error().Err(err).Str("week_start", key.date).Msg("failed to load bookings")
		return f.emptyWeek(start, keyService, now)
	}

	week := models.WeekAvailability{
		WeekStart: start,
		WeekEnd:   start.AddDate(0, 0, 6),
		ServiceID: keyService,
		Days:      make([]models.DayAvailability, 0, 7),
	}
	var entry weekEntry
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i)
		entry.dates[i] = models.DateKey(date)
		if serviceID != "" {
			week.Days = append(week.Days, f.day(ctx, date, serviceID, now, load))
			continue
		}
		week.Days = append(week.Days, f.mergedDay(ctx, date, now, load))
	}
	entry.week = week

	f.putWeek(loaded.gen, key, entry, today)
	return cloneWeek(week)
}

func (f *Facade) mergedDay(ctx context.Context, date time.Time, now time.Time, load snapshotFunc) models.DayAvailability {
	working := false
	var order []models.ClockTime
	merged := map[models.ClockTime]models.TimeSlot{}

	for _, svc := range f.activeServices() {
		day := f.day(ctx, date, svc.ID, now, load)
		working = working || day.IsWorkingDay
		for _, s := range day.Slots {
			prev, seen := merged[s.Time]
			if !seen {
				order = append(order, s.Time)
				merged[s.Time] = s
				continue
			}
			if !prev.Available && s.Available {
				merged[s.Time] = models.TimeSlot{Time: s.Time, Available: true}
			}
		}
	}
	if len(order) == 0 {
		working = validation.New(validation.NewSnapshot(f.rules, nil, now)).CanBookOnDate(date)
	}

	out := make([]models.TimeSlot, 0, len(order))
	slices.Sort(order)
	for _, t := range order {
		out = append(out, merged[t])
	}
	return models.NewDayAvailability(date, models.AllServicesKey, working, out)
}

func (f *Facade) putWeek(gen uint64, key cacheKey, entry weekEntry, today time.Time) {
	if entry.week.WeekEnd.Before(today) || !f.cacheable(entry.week.WeekStart, today) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generation.Load() != gen {
		return
	}

	cur := f.state.Load()
	next := &cacheState{
		days:  cur.days,
		weeks: make(map[cacheKey]weekEntry, len(cur.weeks)+1),
	}
	for k, v := range cur.weeks {
		if !v.week.WeekEnd.Before(today) {
			next.weeks[k] = v
		}
	}
	next.weeks[key] = entry
	f.state.Store(next)
}

func (f *Facade) emptyWeek(start time.Time, serviceID string, now time.Time) models.WeekAvailability {
	engine := validation.New(validation.NewSnapshot(f.rules, nil, now))
	week := models.WeekAvailability{
		WeekStart: start,
		WeekEnd:   start.AddDate(0, 0, 6),
		ServiceID: serviceID,
		Days:      make([]models.DayAvailability, 0, 7),
	}
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i)
		week.Days = append(week.Days, models.NewDayAvailability(date, serviceID, engine.CanBookOnDate(date), nil))
	}
	return week
}

// InvalidateDate drops every day entry for date and every week entry whose
// range contains it.
func (f *Facade) InvalidateDate(ctx context.Context, date time.Time) {
	key := models.DateKey(f.normalize(date, f.clock.Now()))

	f.mu.Lock()
	f.generation.Add(1)
	cur := f.state.Load()
	next := &cacheState{
		days:  make(map[cacheKey]models.DayAvailability, len(cur.days)),
		weeks: make(map[cacheKey]weekEntry, len(cur.weeks)),
	}
	for k, v := range cur.days {
		if k.date != key {
			next.days[k] = v
		}
	}
	for k, v := range cur.weeks {
		if !v.contains(key) {
			next.weeks[k] = v
		}
	}
	f.state.Store(next)
	f.mu.Unlock()

	metrics.IncCacheInvalidation("date")
	f.logger.Debug().Str("date", key).Msg("availability invalidated")

	if f.store != nil {
		f.storeMu.Lock()
		defer f.storeMu.Unlock()
		if err := f.store.InvalidateDate(ctx, date); err != nil {
			f.logger.Warn().Err(err).Str("date", key).Msg("availability store invalidation failed")
		}
	}
}

// InvalidateAll clears the whole cache.
func (f *Facade) InvalidateAll(ctx context.Context) {
	f.mu.Lock()
	f.generation.Add(1)
	f.state.Store(emptyState())
	f.mu.Unlock()

	metrics.IncCacheInvalidation("all")
	f.logger.Debug().Msg("availability cache cleared")

	if f.store != nil {
		f.storeMu.Lock()
		defer f.storeMu.Unlock()
		if err := f.store.InvalidateAll(ctx); err != nil {
			f.logger.Warn().Err(err).Msg("availability store invalidation failed")
		}
	}
}

// NextAvailableSlot scans horizonDays days starting at from and returns the
// first available slot. A non-positive horizon uses the default and the scan
// never goes past MaxHorizonDays or the advance window.
func (f *Facade) NextAvailableSlot(ctx context.Context, serviceID string, from time.Time, horizonDays int) (NextSlot, bool) {
	if horizonDays <= 0 {
		horizonDays = models.DefaultNextSlotHorizonDays
	}
	horizonDays = min(horizonDays, models.MaxHorizonDays)
	now := f.clock.Now()
	start := f.normalize(from, now)
	load := f.loader(ctx, now)
	engine := validation.New(validation.NewSnapshot(f.rules, nil, now))

	for i := 0; i < horizonDays; i++ {
		if ctx.Err() != nil {
			return NextSlot{}, false
		}
		date := start.AddDate(0, 0, i)
		if !engine.CanBookInAdvance(date) {
			break
		}
		day := f.day(ctx, date, serviceID, now, load)
		if slot, ok := day.FirstAvailable(); ok {
			return NextSlot{Date: day.Date, Time: slot.Time}, true
		}
	}
	return NextSlot{}, false
}

// Stats returns the current entry counts.
func (f *Facade) Stats() Stats {
	s := f.state.Load()
	return Stats{Days: len(s.days), Weeks: len(s.weeks)}
}

func (f *Facade) activeServices() []models.Service {
	if f.catalog == nil {
		return nil
	}
	return f.catalog.ActiveServices()
}

// normalize re-anchors date to midnight in the clock's location.
func (f *Facade) normalize(date, now time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func (e weekEntry) contains(dateKey string) bool {
	for _, d := range e.dates {
		if d == dateKey {
			return true
		}
	}
	return false
}

func cloneWeek(w models.WeekAvailability) models.WeekAvailability {
	out := w
	out.Days = make([]models.DayAvailability, len(w.Days))
	for i, d := range w.Days {
		out.Days[i] = d.Clone()
	}
	return out
}
