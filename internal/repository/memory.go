package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"slotengine/internal/domain"
	"slotengine/internal/models"
)

// MemoryAvailabilityStore keeps computed days in process. It backs the
// failover store while Redis is unavailable.
type MemoryAvailabilityStore struct {
	days  sync.Map
	clock domain.Clock
}

type memoryEntry struct {
	day       models.DayAvailability
	expiresAt time.Time
}

func NewMemoryAvailabilityStore(clock domain.Clock) *MemoryAvailabilityStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &MemoryAvailabilityStore{clock: clock}
}

func memoryKey(dateKey, serviceID string) string {
	return dateKey + "|" + serviceID
}

func (r *MemoryAvailabilityStore) GetDay(ctx context.Context, date time.Time, serviceID string) (*models.DayAvailability, error) {
	key := memoryKey(models.DateKey(date), serviceID)
	val, ok := r.days.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if !r.clock.Now().Before(entry.expiresAt) {
		// A concurrent PutDay may have replaced the entry; only drop this one.
		r.days.CompareAndDelete(key, entry)
		return nil, nil
	}
	day := entry.day.Clone()
	return &day, nil
}

func (r *MemoryAvailabilityStore) PutDay(ctx context.Context, day models.DayAvailability) error {
	r.days.Store(memoryKey(models.DateKey(day.Date), day.ServiceID), &memoryEntry{
		day:       day.Clone(),
		expiresAt: models.DateOf(day.Date).AddDate(0, 0, 1),
	})
	return nil
}

func (r *MemoryAvailabilityStore) InvalidateDate(ctx context.Context, date time.Time) error {
	prefix := memoryKey(models.DateKey(date), "")
	r.days.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			r.days.Delete(k)
		}
		return true
	})
	return nil
}

func (r *MemoryAvailabilityStore) InvalidateAll(ctx context.Context) error {
	r.days.Clear()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (r *MemoryAvailabilityStore) Len() int {
	n := 0
	r.days.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
