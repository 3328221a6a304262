package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventResourceProvisioned    = "resource_provisioned"
	EventResourceUpdated        = "resource_updated"
	EventScheduleBlocksCreated  = "schedule_blocks_created"
	EventScheduleBlocksReplaced = "schedule_blocks_replaced"
	EventBookingCreated         = "booking_created"
	EventBookingUpdated         = "booking_updated"
	EventBookingCanceled        = "booking_canceled"
)

// All lists every event type the gateway publishes.
var All = []string{
	EventResourceProvisioned,
	EventResourceUpdated,
	EventScheduleBlocksCreated,
	EventScheduleBlocksReplaced,
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingCanceled,
}

// ResourceEventPayload describes a provisioned or updated resource.
type ResourceEventPayload struct {
	ResourceID          string `json:"resource_id"`
	ResourceName        string `json:"resource_name,omitempty"`
	RecurringScheduleID string `json:"recurring_schedule_id,omitempty"`
	ServiceID           string `json:"service_id,omitempty"`
}

// BlocksEventPayload summarizes a block batch.
type BlocksEventPayload struct {
	ResourceID          string `json:"resource_id"`
	RecurringScheduleID string `json:"recurring_schedule_id"`
	Weekday             string `json:"weekday,omitempty"`
	Created             int    `json:"created"`
	Failed              int    `json:"failed"`
	Deleted             int    `json:"deleted,omitempty"`
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID  string `json:"booking_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	StartsAt   string `json:"starts_at"`
	EndsAt     string `json:"ends_at"`
	Display    string `json:"display,omitempty"`
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
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers one handler for every gateway event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range All {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
