package bus

import "time"

// Event types published by the engine.
const (
	EntitySpawned   = "entity.spawned"
	EntityDespawned = "entity.despawned"
	PropertyAdded   = "property.added"
	PropertyRemoved = "property.removed"
	TickFault       = "tick.fault"
)

// EventBus is an in-process pub/sub bus for engine lifecycle events.
//
// Delivery is synchronous in the publisher's goroutine. Handlers subscribed to
// the wildcard type "*" receive every event. Multiple handler errors are
// joined and returned from Publish. All methods are safe for concurrent use.
type EventBus interface {
	// Publish delivers the event to subscribers of event.Type and to wildcard
	// subscribers.
	Publish(event Event) error
	// Subscribe registers a handler for eventType and returns a handle that
	// cancels it.
	Subscribe(eventType string, handler EventHandler) Subscription
	// Unsubscribe cancels sub. Nil is ignored.
	Unsubscribe(sub Subscription)

	// AddObserver registers an observer notified after each delivery.
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	// Metrics returns counters accumulated while at least one observer was registered.
	Metrics() Metrics
}

// Wildcard subscribes to every event type.
const Wildcard = "*"

// Event is an immutable engine notification.
type Event struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	EntityID  uint64         `json:"entity_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ, source string, entityID uint64, data map[string]any) Event {
	return Event{Type: typ, Source: source, EntityID: entityID, Timestamp: time.Now(), Data: data}
}

// EventHandler is invoked per delivered event.
type EventHandler func(event Event) error

// Subscription is a registered handler.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel()
}

// Observer is notified after each delivery. Observers should return quickly.
type Observer interface {
	OnDelivered(eventType string, handlers int, err error, durationMicros int64)
}

// Metrics is a snapshot of delivery counters.
type Metrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
