package events

import (
	"encoding/json"
	"sync"
	"time"

	"slotengine/internal/models"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
)

// BookingEvents lists every event type that changes availability.
var BookingEvents = []string{EventBookingCreated, EventBookingCancelled, EventBookingCompleted}

// BookingEventPayload is the booking snapshot carried by booking events.
// Date is the only field availability consumers rely on.
type BookingEventPayload struct {
	BookingID  int64     `json:"booking_id"`
	OwnerID    string    `json:"owner_id,omitempty"`
	OwnerEmail string    `json:"owner_email,omitempty"`
	ServiceID  string    `json:"service_id"`
	Status     string    `json:"status"`
	Date       time.Time `json:"date"`
	StartTime  string    `json:"start_time"`
	ChangedBy  string    `json:"changed_by,omitempty"`
}

// NewBookingPayload copies the fields of b that events carry.
func NewBookingPayload(b *models.Booking, changedBy string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:  b.ID,
		OwnerID:    b.OwnerID,
		OwnerEmail: b.OwnerEmail,
		ServiceID:  b.ServiceID,
		Status:     b.Status,
		Date:       b.Date,
		StartTime:  b.StartTime.String(),
		ChangedBy:  changedBy,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger when it is set.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// in subscription order.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Error().Err(err).Str("event", event.Type).Msg("event handler failed")
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
