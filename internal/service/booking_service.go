package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotengine/internal/database"
	"slotengine/internal/domain"
	"slotengine/internal/events"
	"slotengine/internal/metrics"
	"slotengine/internal/models"
	"slotengine/internal/validation"

	"github.com/rs/zerolog"
)

var (
	ErrNotBookable         = errors.New("slot is not bookable")
	ErrSlotTaken           = errors.New("slot is already taken")
	ErrBookingLimitReached = errors.New("active booking limit reached")
	ErrCancellationTooLate = errors.New("cancellation window has passed")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrNotOwner            = errors.New("booking belongs to another user")
	ErrInvalidStatus       = errors.New("booking status does not allow this change")
	ErrIdentityRequired    = errors.New("user id or email is required")
)

// BookingRequest is a parsed booking-creation request.
type BookingRequest struct {
	Date      time.Time
	StartTime models.ClockTime
	ServiceID string
	OwnerName string
	Notes     string
}

type BookingService struct {
	store    domain.BookingStore
	rules    domain.BusinessRulesProvider
	catalog  domain.ServiceCatalog
	clock    domain.Clock
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(
	store domain.BookingStore,
	rules domain.BusinessRulesProvider,
	catalog domain.ServiceCatalog,
	clock domain.Clock,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *BookingService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		store:    store,
		rules:    rules,
		catalog:  catalog,
		clock:    clock,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateBooking re-runs every booking rule against the snapshot read inside
// the write transaction and persists a confirmed booking on success.
func (s *BookingService) CreateBooking(ctx context.Context, identity models.Identity, req BookingRequest) (*models.Booking, error) {
	if identity.Anonymous() {
		return nil, ErrIdentityRequired
	}

	duration := validation.ResolveDuration(s.catalog, req.ServiceID)
	booking := &models.Booking{
		OwnerID:    identity.UserID,
		OwnerEmail: strings.TrimSpace(identity.Email),
		OwnerName:  req.OwnerName,
		Date:       models.DateOf(req.Date),
		StartTime:  req.StartTime,
		ServiceID:  req.ServiceID,
		Status:     models.StatusConfirmed,
		Notes:      req.Notes,
	}

	err := s.store.CreateBookingChecked(ctx, booking, func(existing []models.Booking) error {
		snapshot := validation.NewSnapshot(s.rules, existing, s.clock.Now())
		decision := validation.New(snapshot).CanBook(identity, booking.Date, booking.StartTime, duration, s.catalog)
		return decisionError(decision)
	})
	if err != nil {
		s.logger.Info().
			Err(err).
			Str("user_id", identity.UserID).
			Str("date", models.DateKey(booking.Date)).
			Str("start", booking.StartTime.String()).
			Str("service_id", booking.ServiceID).
			Msg("booking rejected")
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("date", models.DateKey(booking.Date)).
		Str("start", booking.StartTime.String()).
		Str("service_id", booking.ServiceID).
		Msg("booking created")
	s.publishEvent(events.EventBookingCreated, booking, identity.UserID)
	return booking, nil
}

// CancelBooking cancels a confirmed booking owned by identity, subject to the
// cancellation policy.
func (s *BookingService) CancelBooking(ctx context.Context, identity models.Identity, bookingID int64) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.BelongsTo(identity.UserID, identity.Email) {
		return nil, ErrNotOwner
	}
	if !booking.IsConfirmed() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, booking.Status)
	}

	engine := validation.New(validation.NewSnapshot(s.rules, nil, s.clock.Now()))
	if !engine.CanCancel(booking.Date, booking.StartTime) {
		return nil, ErrCancellationTooLate
	}

	if err := s.setStatus(ctx, booking, models.StatusCancelled); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventBookingCancelled, booking, identity.UserID)
	return booking, nil
}

// CompleteBooking marks a confirmed booking as completed.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID int64, changedBy string) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsConfirmed() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, booking.Status)
	}

	if err := s.setStatus(ctx, booking, models.StatusCompleted); err != nil {
		return nil, err
	}
	s.publishEvent(events.EventBookingCompleted, booking, changedBy)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ListUserBookings returns every booking that belongs to identity.
func (s *BookingService) ListUserBookings(ctx context.Context, identity models.Identity) ([]models.Booking, error) {
	if identity.Anonymous() {
		return nil, ErrIdentityRequired
	}
	all, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]models.Booking, 0)
	for i := range all {
		if all[i].BelongsTo(identity.UserID, identity.Email) {
			owned = append(owned, all[i])
		}
	}
	return owned, nil
}

func (s *BookingService) setStatus(ctx context.Context, booking *models.Booking, status string) error {
	err := s.store.UpdateBookingStatus(ctx, booking.ID, status)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrBookingNotFound, booking.ID)
	}
	if err != nil {
		return err
	}
	booking.Status = status
	s.logger.Info().Int64("booking_id", booking.ID).Str("status", status).Msg("booking status changed")
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	metrics.IncBookingEvent(eventType, booking.ServiceID)
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(booking, changedBy)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func decisionError(d validation.Decision) error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == validation.ReasonConflict:
		return ErrSlotTaken
	case d.Reason == validation.ReasonBookingLimit:
		return ErrBookingLimitReached
	default:
		return fmt.Errorf("%w: %s", ErrNotBookable, d.Reason)
	}
}
