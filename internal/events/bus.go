package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(RestoreProgressEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case RestoreProgressEvent:
		event.Publish(b.dispatcher, e)
	case RestoreStateEvent:
		event.Publish(b.dispatcher, e)
	case CaptureStateEvent:
		event.Publish(b.dispatcher, e)
	case DeviceDiscoveryEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e RestoreProgressEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RestoreProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RestoreStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CaptureStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceDiscoveryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unrecognized handler types get a no-op unsubscribe
		return func() {}
	}
}
