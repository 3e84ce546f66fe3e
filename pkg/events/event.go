package events

import "time"

// Event is the contract every telemetry event satisfies before it
// crosses the bus.
type Event interface {
	// EventType returns the event's unique code, e.g. "REQUEST_COMPLETED".
	EventType() string

	// Payload returns the serializable event data.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation the subscriber rebuilds
// decoded messages into; publishers use the typed constructors instead.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
