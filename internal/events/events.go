package events

import (
	"encoding/json"
	"sync"
	"time"

	"fbs/internal/models"

	"github.com/google/uuid"
)

const (
	EventBookingCreated = "booking_created"
)

// BookingEventPayload is the booking snapshot delivered to event consumers.
type BookingEventPayload struct {
	BookingID  string    `json:"booking_id"`
	FacilityID string    `json:"facility_id"`
	Date       string    `json:"date"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	UserEmail  string    `json:"user_email"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewBookingPayload(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:  b.ID,
		FacilityID: b.FacilityID,
		Date:       b.Date,
		Start:      b.Start,
		End:        b.End,
		UserEmail:  b.UserEmail,
		Reason:     b.Reason,
		CreatedAt:  b.CreatedAt,
	}
}

// EventKey keeps all events of one facility on the same broker partition.
func (p BookingEventPayload) EventKey() string {
	return p.FacilityID
}

type keyed interface {
	EventKey() string
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	onError     func(event *Event, err error)
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler failures.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	b.onError = fn
	b.mu.Unlock()
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
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

	event := Event{ID: uuid.NewString(), Type: eventType, Payload: raw, CreatedAt: time.Now()}
	if k, ok := payload.(keyed); ok {
		event.Key = k.EventKey()
	}
	return event, nil
}
