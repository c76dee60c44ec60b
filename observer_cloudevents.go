package pluggable

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// NewCloudEvent creates a new CloudEvent. Each metadata entry becomes a
// CloudEvents extension attribute.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()

	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// generateEventID generates a time-ordered unique identifier using UUIDv7.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent validates that a CloudEvent conforms to the specification.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return nil
}

// PluginEventDataFrom decodes the payload of a plugin lifecycle event.
func PluginEventDataFrom(event cloudevents.Event) (PluginEventData, error) {
	var data PluginEventData
	if err := event.DataAs(&data); err != nil {
		return data, fmt.Errorf("decode plugin event %s: %w", event.ID(), err)
	}
	return data, nil
}

// EventOperation returns the operation extension of event, or "" when unset.
func EventOperation(event cloudevents.Event) string {
	op, _ := event.Extensions()[ExtensionOperation].(string)
	return op
}
