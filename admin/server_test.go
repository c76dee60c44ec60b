package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/pluggable"
	"github.com/GoCodeAlone/pluggable/metrics"
	"github.com/GoCodeAlone/pluggable/store"
)

type host struct{}

func newTestServer(t *testing.T, opts ...Option) (*pluggable.ObservableRegistry[*host], *Server[*host]) {
	t.Helper()
	reg := pluggable.NewObservableRegistry[*host]()
	plain := func() (pluggable.Plugin, error) { return struct{}{}, nil }
	for _, m := range []pluggable.Manifest{
		pluggable.NewSimpleManifest("db", "database"),
		pluggable.NewSimpleManifestWithDependencies("web", "web tier", []string{"db"}),
		pluggable.NewSimpleManifestWithDependencies("orphan", "", []string{"ghost"}),
	} {
		_, err := reg.Register(m, plain)
		require.NoError(t, err)
	}
	return reg, NewServer(reg, &host{}, opts...)
}

func do(t *testing.T, h http.Handler, method, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestListAndGetPlugins(t *testing.T) {
	_, srv := newTestServer(t)

	var list []PluginStatus
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/plugins", &list))
	require.Len(t, list, 3)
	assert.Equal(t, "db", list[0].ID)
	assert.Equal(t, "database", list[0].Description)
	assert.Equal(t, []string{"web"}, list[0].Dependents)
	assert.Equal(t, []string{}, list[0].Dependencies)

	var web PluginStatus
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/plugins/web", &web))
	assert.Equal(t, []string{"db"}, web.Dependencies)
	assert.False(t, web.Loaded)

	var errResp errorResponse
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/plugins/nope", &errResp))
	assert.Equal(t, "plugin `nope` not found", errResp.Error)
}

func TestPluginActions(t *testing.T) {
	reg, srv := newTestServer(t)

	var st PluginStatus
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/plugins/web/enable", &st))
	assert.True(t, st.Enabled)
	assert.True(t, reg.IsEnabled("db"))

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/plugins/web/disable", &st))
	assert.False(t, st.Enabled)
	assert.True(t, st.Loaded)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/plugins/web/unload", &st))
	assert.False(t, st.Loaded)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/plugins/web/load", &st))
	assert.True(t, st.Loaded)

	var errResp errorResponse
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/plugins/web/unload", nil))
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/plugins/web/unload", &errResp))
	assert.Contains(t, errResp.Error, "not loaded")

	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, http.MethodPost, "/plugins/orphan/load", &errResp))
	assert.Equal(t, "dependency `ghost` required by `orphan` not found", errResp.Error)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/plugins/nope/enable", nil))
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/plugins/web/explode", &errResp))
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodGet, "/plugins/web/enable", nil))
}

func TestGraphAndObservers(t *testing.T) {
	reg, srv := newTestServer(t)
	require.NoError(t, reg.RegisterObserver(pluggable.NewFunctionalObserver("noop", func(context.Context, pluggable.CloudEvent) error {
		return nil
	})))

	var graph graphResponse
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/graph", &graph))
	assert.Equal(t, []string{"db", "web"}, graph.Order["web"])
	assert.Equal(t, []string{"db"}, graph.Order["db"])

	var observers []pluggable.ObserverInfo
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/observers", &observers))
	require.Len(t, observers, 1)
	assert.Equal(t, "noop", observers[0].ID)

	var health map[string]string
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", &health))
	assert.Equal(t, "ok", health["status"])
}

func TestHistoryAndMetrics(t *testing.T) {
	_, bare := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, bare, http.MethodGet, "/plugins/db/history", nil))
	assert.Equal(t, http.StatusNotFound, do(t, bare, http.MethodGet, "/metrics", nil))

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer st.Close()

	reg := pluggable.NewObservableRegistry[*host]()
	m := metrics.New("", reg)
	require.NoError(t, reg.RegisterObserver(st))
	require.NoError(t, reg.RegisterObserver(m))
	srv := NewServer(reg, &host{}, WithHistory(st), WithMetrics(m.Handler()), WithLogger(pluggable.NoopLogger{}))

	_, err = reg.Register(pluggable.NewSimpleManifest("db", ""), func() (pluggable.Plugin, error) { return struct{}{}, nil })
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/plugins/db/enable", nil))

	var events []store.Event
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/plugins/db/history?limit=2", &events))
	require.Len(t, events, 2)
	assert.Equal(t, pluggable.EventTypePluginLoaded, events[0].Type)
	assert.Equal(t, pluggable.EventTypePluginEnabled, events[1].Type)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/plugins/db/history?limit=x", nil))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pluggable_plugins{state="enabled"} 1`)
}

func TestServeStopsOnContextCancel(t *testing.T) {
	_, srv := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
