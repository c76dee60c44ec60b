// Package pluggable provides Observer pattern interfaces for plugin lifecycle
// notifications. Events use the CloudEvents specification so they can be
// forwarded to external systems unchanged.
package pluggable

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of
// plugin lifecycle events.
type Observer interface {
	// OnEvent is called for every event the observer subscribed to.
	// Observers are notified synchronously and should return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject defines the interface for objects that can be observed.
type Subject interface {
	// RegisterObserver adds an observer. If eventTypes is empty, the observer
	// receives all events. Registering an id twice replaces the earlier
	// registration.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. It is idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all interested observers.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about currently registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty slice means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventType constants for plugin lifecycle events, in reverse domain notation.
const (
	EventTypePluginRegistered   = "com.pluggable.plugin.registered"
	EventTypePluginUnregistered = "com.pluggable.plugin.unregistered"
	EventTypePluginLoaded       = "com.pluggable.plugin.loaded"
	EventTypePluginUnloaded     = "com.pluggable.plugin.unloaded"
	EventTypePluginEnabled      = "com.pluggable.plugin.enabled"
	EventTypePluginDisabled     = "com.pluggable.plugin.disabled"
	EventTypePluginFailed       = "com.pluggable.plugin.failed"
)

// ExtensionOperation is the CloudEvents extension naming the registry call
// (register, load, enable, disable, unload or unregister) that caused an event.
const ExtensionOperation = "operation"

// PluginEventData is the JSON payload carried by plugin lifecycle events.
type PluginEventData struct {
	PluginID  string `json:"pluginId"`
	Operation string `json:"operation,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FunctionalObserver provides a simple way to create observers using functions.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided function
// to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
