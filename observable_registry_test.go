package pluggable

import (
	"context"
	"errors"
	"sync"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver stores "type:plugin" strings for each event it receives.
type recordingObserver struct {
	id     string
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) ObserverID() string { return o.id }

func (o *recordingObserver) OnEvent(_ context.Context, event cloudevents.Event) error {
	data, err := PluginEventDataFrom(event)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, shortType(event.Type())+":"+data.PluginID)
	return nil
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func shortType(eventType string) string {
	const prefix = "com.pluggable.plugin."
	return eventType[len(prefix):]
}

func newObservableStack(t *testing.T) (*ObservableRegistry[*testHost], *recordingObserver) {
	t.Helper()
	o := NewObservableRegistry[*testHost]()
	obs := &recordingObserver{id: "recorder"}
	require.NoError(t, o.RegisterObserver(obs))
	for _, m := range []Manifest{
		NewSimpleManifestWithDependencies("web", "", []string{"auth", "db"}),
		NewSimpleManifestWithDependencies("auth", "", []string{"db"}),
		NewSimpleManifest("db", ""),
	} {
		id := m.ID()
		_, err := o.Register(m, func() (Plugin, error) { return &testPlugin{id: id}, nil })
		require.NoError(t, err)
	}
	return o, obs
}

func TestObservableRegistryReportsTransitions(t *testing.T) {
	ctx := context.Background()
	host := &testHost{}
	o, obs := newObservableStack(t)

	assert.Equal(t, []string{"registered:web", "registered:auth", "registered:db"}, obs.snapshot())

	obs.events = nil
	require.NoError(t, o.Enable(ctx, "web", host))
	assert.Equal(t, []string{
		"loaded:db", "loaded:auth", "loaded:web",
		"enabled:db", "enabled:auth", "enabled:web",
	}, obs.snapshot())

	obs.events = nil
	require.NoError(t, o.Unload(ctx, "auth", host))
	assert.Equal(t, []string{"disabled:auth", "unloaded:auth"}, obs.snapshot())

	obs.events = nil
	require.NoError(t, o.Disable(ctx, "db", host))
	require.NoError(t, o.Unregister(ctx, "web", host))
	assert.Equal(t, []string{"disabled:db", "disabled:web", "unloaded:web", "unregistered:web"}, obs.snapshot())
}

func TestObservableRegistryReportsFailures(t *testing.T) {
	ctx := context.Background()
	host := &testHost{}
	o := NewObservableRegistry[*testHost]()

	var failures []PluginEventData
	require.NoError(t, o.RegisterObserver(NewFunctionalObserver("failures", func(_ context.Context, event cloudevents.Event) error {
		data, err := PluginEventDataFrom(event)
		if err != nil {
			return err
		}
		failures = append(failures, data)
		return nil
	}), EventTypePluginFailed))

	_, err := o.Register(NewSimpleManifestWithDependencies("a", "", []string{"a"}), nil)
	require.Error(t, err)
	require.ErrorIs(t, o.Load(ctx, "ghost", host), ErrPluginNotFound)

	require.Len(t, failures, 2)
	assert.Equal(t, "a", failures[0].PluginID)
	assert.Equal(t, "register", failures[0].Operation)
	assert.Contains(t, failures[0].Error, "dependency cycle")
	assert.Equal(t, "ghost", failures[1].PluginID)
	assert.Equal(t, "load", failures[1].Operation)
	assert.Equal(t, "plugin `ghost` not found", failures[1].Error)
}

func TestObservableRegistryPartialEnableFailure(t *testing.T) {
	ctx := context.Background()
	host := &testHost{}
	o := NewObservableRegistry[*testHost]()
	obs := &recordingObserver{id: "recorder"}
	require.NoError(t, o.RegisterObserver(obs, EventTypePluginLoaded, EventTypePluginEnabled, EventTypePluginFailed))

	_, err := o.Register(NewSimpleManifest("dep", ""), ctorFor(&testPlugin{id: "dep"}))
	require.NoError(t, err)
	_, err = o.Register(NewSimpleManifestWithDependencies("top", "", []string{"dep"}),
		ctorFor(&testPlugin{id: "top", enableErr: errors.New("nope")}))
	require.NoError(t, err)

	require.Error(t, o.Enable(ctx, "top", host))
	assert.Equal(t, []string{"loaded:dep", "loaded:top", "enabled:dep", "failed:top"}, obs.snapshot())
}

func TestObserverManagement(t *testing.T) {
	o := NewObservableRegistry[*testHost]()
	first := &recordingObserver{id: "first"}
	second := &recordingObserver{id: "second"}

	require.NoError(t, o.RegisterObserver(first, EventTypePluginLoaded, EventTypePluginEnabled))
	require.NoError(t, o.RegisterObserver(second))
	assert.ErrorIs(t, o.RegisterObserver(nil), ErrNilObserver)

	infos := o.GetObservers()
	require.Len(t, infos, 2)
	assert.Equal(t, "first", infos[0].ID)
	assert.Equal(t, []string{EventTypePluginEnabled, EventTypePluginLoaded}, infos[0].EventTypes)
	assert.Equal(t, "second", infos[1].ID)
	assert.Empty(t, infos[1].EventTypes)

	require.NoError(t, o.UnregisterObserver(first))
	require.NoError(t, o.UnregisterObserver(first))
	assert.Len(t, o.GetObservers(), 1)
}

func TestNotifyObserversSurvivesPanicsAndErrors(t *testing.T) {
	o := NewObservableRegistry[*testHost]()
	o.SetEventSource("tests")
	var delivered []string

	require.NoError(t, o.RegisterObserver(NewFunctionalObserver("panics", func(context.Context, cloudevents.Event) error {
		panic("observer bug")
	})))
	require.NoError(t, o.RegisterObserver(NewFunctionalObserver("errors", func(context.Context, cloudevents.Event) error {
		return errors.New("observer failed")
	})))
	require.NoError(t, o.RegisterObserver(NewFunctionalObserver("ok", func(_ context.Context, e cloudevents.Event) error {
		delivered = append(delivered, e.Source())
		return nil
	})))

	_, err := o.Register(NewSimpleManifest("p", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tests"}, delivered)
}

func TestNotifyObserversRejectsInvalidEvents(t *testing.T) {
	o := NewObservableRegistry[*testHost]()
	event := cloudevents.NewEvent()
	assert.Error(t, o.NotifyObservers(context.Background(), event))
}

func TestNewCloudEvent(t *testing.T) {
	event := NewCloudEvent(EventTypePluginLoaded, "src", PluginEventData{PluginID: "x"}, map[string]any{"region": "eu"})

	require.NoError(t, ValidateCloudEvent(event))
	assert.NotEmpty(t, event.ID())
	assert.Equal(t, "eu", event.Extensions()["region"])

	data, err := PluginEventDataFrom(event)
	require.NoError(t, err)
	assert.Equal(t, "x", data.PluginID)
}

func TestObservableRegistryConcurrentEnablesReportOwnTransitions(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	for run := 0; run < 50; run++ {
		o := NewObservableRegistry[*testHost]()
		obs := &recordingObserver{id: "recorder"}
		require.NoError(t, o.RegisterObserver(obs))
		for _, id := range ids {
			_, err := o.Register(NewSimpleManifest(id, ""), func() (Plugin, error) { return struct{}{}, nil })
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, o.Enable(context.Background(), id, &testHost{}))
			}()
		}
		wg.Wait()

		counts := make(map[string]int)
		for _, e := range obs.snapshot() {
			counts[e]++
		}
		for _, id := range ids {
			require.Equal(t, 1, counts["loaded:"+id], "run %d: %v", run, obs.snapshot())
			require.Equal(t, 1, counts["enabled:"+id], "run %d: %v", run, obs.snapshot())
		}
		require.Len(t, obs.snapshot(), 3*len(ids), "run %d", run)
	}
}

func TestObservableRegistryEventsCarryOperation(t *testing.T) {
	o, _ := newObservableStack(t)

	var operations []string
	require.NoError(t, o.RegisterObserver(NewFunctionalObserver("ops", func(_ context.Context, event cloudevents.Event) error {
		operations = append(operations, shortType(event.Type())+"/"+EventOperation(event))
		return nil
	})))

	require.NoError(t, o.Enable(context.Background(), "auth", &testHost{}))
	require.NoError(t, o.Disable(context.Background(), "db", &testHost{}))
	assert.Equal(t, []string{
		"loaded/enable", "loaded/enable",
		"enabled/enable", "enabled/enable",
		"disabled/disable",
	}, operations)
	assert.Empty(t, EventOperation(NewCloudEvent(EventTypePluginLoaded, "src", nil, nil)))
}
