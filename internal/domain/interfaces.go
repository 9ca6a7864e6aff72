package domain

import (
	"context"
	"time"

	"slotengine/internal/models"
)

// BusinessRulesProvider supplies the current business rules. Implementations
// merge configured values over defaults and never fail.
type BusinessRulesProvider interface {
	BusinessHours() models.BusinessHours
	WorkingDays() []int
	SlotDurationMinutes() int
	AdvanceBookingDays() int
	MinLeadTimeMinutes() int
	CancellationPolicy() models.CancellationPolicy
	MaxActiveBookingsPerUser() int
}

// BookingRepository returns the full current booking snapshot.
type BookingRepository interface {
	ListBookings(ctx context.Context) ([]models.Booking, error)
}

// BookingStore is the write side used by booking flows.
type BookingStore interface {
	BookingRepository
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	// CreateBookingChecked persists booking only if check accepts the booking
	// snapshot read in the same write transaction.
	CreateBookingChecked(ctx context.Context, booking *models.Booking, check func(existing []models.Booking) error) error
	UpdateBookingStatus(ctx context.Context, id int64, status string) error
}

// ServiceRepository persists the service catalog.
type ServiceRepository interface {
	GetActiveServices(ctx context.Context) ([]models.Service, error)
	UpsertService(ctx context.Context, svc *models.Service) error
	DeactivateService(ctx context.Context, id string) error
}

// ServiceCatalog resolves service durations. ServiceDuration returns
// models.DefaultServiceDurationMinutes for unknown ids.
type ServiceCatalog interface {
	ServiceDuration(serviceID string) int
	ActiveServices() []models.Service
	GetService(serviceID string) (*models.Service, error)
}

// IdentityProvider identifies the user a per-user rule is evaluated for.
type IdentityProvider interface {
	CurrentUserID() string
	CurrentUserEmail() string
}

// Clock supplies "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// AvailabilityStore is an optional shared second-level store for computed days.
// GetDay returns (nil, nil) on a miss.
type AvailabilityStore interface {
	GetDay(ctx context.Context, date time.Time, serviceID string) (*models.DayAvailability, error)
	PutDay(ctx context.Context, day models.DayAvailability) error
	InvalidateDate(ctx context.Context, date time.Time) error
	InvalidateAll(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
