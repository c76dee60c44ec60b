package store

import (
	"context"
	"errors"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/pluggable"
)

// ObserverID identifies the store among registry observers.
const ObserverID = "pluggable.store"

// ObserverID returns the id the store registers under.
func (s *Store) ObserverID() string { return ObserverID }

// OnEvent records every event in the history and keeps the enabled set up to
// date. An unregistered plugin's state is forgotten.
func (s *Store) OnEvent(ctx context.Context, event cloudevents.Event) error {
	data, err := pluggable.PluginEventDataFrom(event)
	if err != nil {
		return err
	}
	operation := data.Operation
	if operation == "" {
		operation = pluggable.EventOperation(event)
	}

	if err := s.RecordEvent(ctx, Event{
		ID:         event.ID(),
		PluginID:   data.PluginID,
		Type:       event.Type(),
		Operation:  operation,
		Error:      data.Error,
		OccurredAt: event.Time(),
	}); err != nil {
		return err
	}

	switch event.Type() {
	case pluggable.EventTypePluginEnabled:
		return s.SetEnabled(ctx, data.PluginID, true)
	case pluggable.EventTypePluginDisabled:
		return s.SetEnabled(ctx, data.PluginID, false)
	case pluggable.EventTypePluginUnregistered:
		return s.Forget(ctx, data.PluginID)
	}
	return nil
}

// Enabler is the part of a registry Restore needs.
type Enabler[H any] interface {
	Exists(id string) bool
	Enable(ctx context.Context, id string, host H) error
}

// Restore enables every plugin recorded as enabled that is registered in reg.
// Plugins that are no longer registered are skipped and stay recorded. It
// returns the ids that were enabled; failures are joined into the error.
func Restore[H any](ctx context.Context, s *Store, reg Enabler[H], host H, logger pluggable.Logger) ([]string, error) {
	ids, err := s.EnabledPlugins(ctx)
	if err != nil {
		return nil, err
	}

	var (
		restored []string
		errs     []error
	)
	for _, id := range ids {
		if !reg.Exists(id) {
			logger.Warn("Skipping restore of unregistered plugin", "plugin", id)
			continue
		}
		if err := reg.Enable(ctx, id, host); err != nil {
			errs = append(errs, err)
			continue
		}
		restored = append(restored, id)
	}
	logger.Info("Restored enabled plugins", "count", len(restored), "failed", len(errs))
	return restored, errors.Join(errs...)
}

var _ pluggable.Observer = (*Store)(nil)
