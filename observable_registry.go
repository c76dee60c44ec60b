package pluggable

import (
	"context"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// DefaultEventSource is the CloudEvents source used by an ObservableRegistry.
const DefaultEventSource = "pluggable/registry"

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool // empty means all events
	registeredAt time.Time
}

// ObservableRegistry extends Registry with observer support. Every lifecycle
// transition, including the ones applied to dependencies, is reported as a
// CloudEvent carrying the operation that caused it. The transitions are
// recorded under the registry lock, so a call reports exactly the changes it
// made, in the order it made them. Observers are notified synchronously, in
// registration order, after the lock is released; events of concurrent calls
// may interleave.
type ObservableRegistry[H any] struct {
	*Registry[H]
	source        string
	observers     map[string]*observerRegistration
	order         []string
	observerMutex sync.RWMutex
}

// NewObservableRegistry creates a new registry with observer support.
func NewObservableRegistry[H any](opts ...Option) *ObservableRegistry[H] {
	return WrapObservable(NewRegistry[H](opts...))
}

// WrapObservable adds observer support to an existing registry. Transitions
// made through the wrapped registry directly are not reported.
func WrapObservable[H any](r *Registry[H]) *ObservableRegistry[H] {
	return &ObservableRegistry[H]{
		Registry:  r,
		source:    DefaultEventSource,
		observers: make(map[string]*observerRegistration),
	}
}

// SetEventSource changes the CloudEvents source attribute of emitted events.
func (o *ObservableRegistry[H]) SetEventSource(source string) {
	o.observerMutex.Lock()
	defer o.observerMutex.Unlock()
	o.source = source
}

// RegisterObserver adds an observer to receive notifications from the registry.
func (o *ObservableRegistry[H]) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrNilObserver
	}

	o.observerMutex.Lock()
	defer o.observerMutex.Unlock()

	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	id := observer.ObserverID()
	if _, exists := o.observers[id]; !exists {
		o.order = append(o.order, id)
	}
	o.observers[id] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	o.logger.Debug("Observer registered", "observerID", id, "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer from receiving notifications.
func (o *ObservableRegistry[H]) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrNilObserver
	}

	o.observerMutex.Lock()
	defer o.observerMutex.Unlock()

	id := observer.ObserverID()
	if _, exists := o.observers[id]; exists {
		delete(o.observers, id)
		o.order = slices.DeleteFunc(o.order, func(s string) bool { return s == id })
		o.logger.Debug("Observer unregistered", "observerID", id)
	}
	return nil
}

// GetObservers returns information about currently registered observers, in
// registration order.
func (o *ObservableRegistry[H]) GetObservers() []ObserverInfo {
	o.observerMutex.RLock()
	defer o.observerMutex.RUnlock()

	info := make([]ObserverInfo, 0, len(o.order))
	for _, id := range o.order {
		registration := o.observers[id]
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		slices.Sort(eventTypes)

		info = append(info, ObserverInfo{
			ID:           id,
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	return info
}

// NotifyObservers delivers event to every interested observer. Observer errors
// and panics are logged and do not stop delivery to the remaining observers.
func (o *ObservableRegistry[H]) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		o.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	o.observerMutex.RLock()
	targets := make([]*observerRegistration, 0, len(o.order))
	for _, id := range o.order {
		registration := o.observers[id]
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}
		targets = append(targets, registration)
	}
	o.observerMutex.RUnlock()

	for _, registration := range targets {
		o.deliver(ctx, registration.observer, event)
	}
	return nil
}

func (o *ObservableRegistry[H]) deliver(ctx context.Context, observer Observer, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Observer panicked", "observerID", observer.ObserverID(), "event", event.Type(), "panic", r)
		}
	}()

	if err := observer.OnEvent(ctx, event); err != nil {
		o.logger.Error("Observer error", "observerID", observer.ObserverID(), "event", event.Type(), "error", err)
	}
}

func (o *ObservableRegistry[H]) emit(ctx context.Context, eventType, operation string, data PluginEventData) {
	o.observerMutex.RLock()
	source := o.source
	o.observerMutex.RUnlock()

	event := NewCloudEvent(eventType, source, data, map[string]any{ExtensionOperation: operation})
	if err := o.NotifyObservers(ctx, event); err != nil {
		o.logger.Error("Failed to notify observers", "event", eventType, "error", err)
	}
}

// report emits one event per transition in changes, followed by a failed event
// when err is set.
func (o *ObservableRegistry[H]) report(ctx context.Context, id, operation string, changes []transition, err error) error {
	for _, t := range changes {
		o.emit(ctx, t.eventType, operation, PluginEventData{PluginID: t.plugin})
	}
	if err != nil {
		o.emit(ctx, EventTypePluginFailed, operation, PluginEventData{PluginID: id, Operation: operation, Error: err.Error()})
	}
	return err
}

// Register registers a plugin and emits a registered or failed event.
func (o *ObservableRegistry[H]) Register(manifest Manifest, ctor Constructor) (string, error) {
	id, err := o.Registry.Register(manifest, ctor)
	var changes []transition
	if err == nil {
		changes = []transition{{eventType: EventTypePluginRegistered, plugin: id}}
	}
	return id, o.report(context.Background(), id, "register", changes, err)
}

// Unregister unregisters a plugin, reporting the disable and unload it implies.
func (o *ObservableRegistry[H]) Unregister(ctx context.Context, id string, host H) error {
	changes, err := o.Registry.unregister(ctx, id, host)
	return o.report(ctx, id, "unregister", changes, err)
}

// Load loads a plugin, reporting each plugin that became loaded.
func (o *ObservableRegistry[H]) Load(ctx context.Context, id string, host H) error {
	changes, err := o.Registry.load(ctx, id, nil, host)
	return o.report(ctx, id, "load", changes, err)
}

// LoadWith loads a plugin from the supplied instance, reporting each plugin
// that became loaded.
func (o *ObservableRegistry[H]) LoadWith(ctx context.Context, id string, plugin Plugin, host H) error {
	if plugin == nil {
		return o.report(ctx, id, "load", nil, o.Registry.LoadWith(ctx, id, nil, host))
	}
	changes, err := o.Registry.load(ctx, id, plugin, host)
	return o.report(ctx, id, "load", changes, err)
}

// Unload unloads a plugin and emits the resulting events.
func (o *ObservableRegistry[H]) Unload(ctx context.Context, id string, host H) error {
	changes, err := o.Registry.unload(ctx, id, host)
	return o.report(ctx, id, "unload", changes, err)
}

// Enable enables a plugin, reporting each plugin that became loaded or enabled.
func (o *ObservableRegistry[H]) Enable(ctx context.Context, id string, host H) error {
	changes, err := o.Registry.enable(ctx, id, host)
	return o.report(ctx, id, "enable", changes, err)
}

// Disable disables a plugin and emits the resulting event.
func (o *ObservableRegistry[H]) Disable(ctx context.Context, id string, host H) error {
	changes, err := o.Registry.disable(ctx, id, host)
	return o.report(ctx, id, "disable", changes, err)
}
