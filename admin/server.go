// Package admin serves an HTTP API for inspecting and driving a plugin
// registry.
//
//	GET  /healthz                     liveness probe
//	GET  /plugins                     every registered plugin and its state
//	GET  /plugins/{id}                one plugin
//	POST /plugins/{id}/{action}       load, enable, disable or unload a plugin
//	GET  /plugins/{id}/history        recorded lifecycle events, when a history source is set
//	GET  /graph                       dependency order of every plugin
//	GET  /observers                   registered observers
//	GET  /metrics                     Prometheus metrics, when a metrics handler is set
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/pluggable"
	"github.com/GoCodeAlone/pluggable/store"
)

// History provides the recorded events of a plugin.
type History interface {
	History(ctx context.Context, pluginID string, limit int) ([]store.Event, error)
}

// Server is the admin API of one registry.
type Server[H any] struct {
	registry *pluggable.ObservableRegistry[H]
	host     H
	logger   pluggable.Logger
	metrics  http.Handler
	history  History
	router   *chi.Mux
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger  pluggable.Logger
	metrics http.Handler
	history History
}

// WithLogger sets the logger used for request logs.
func WithLogger(logger pluggable.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// WithHistory enables /plugins/{id}/history.
func WithHistory(h History) Option {
	return func(o *options) { o.history = h }
}

// NewServer builds the admin API for registry. host is passed to every
// lifecycle call made through the API.
func NewServer[H any](registry *pluggable.ObservableRegistry[H], host H, opts ...Option) *Server[H] {
	o := options{logger: registry.Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = pluggable.NoopLogger{}
	}

	s := &Server[H]{
		registry: registry,
		host:     host,
		logger:   o.logger,
		metrics:  o.metrics,
		history:  o.history,
	}
	s.router = s.routes()
	return s
}

func (s *Server[H]) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/plugins", func(r chi.Router) {
		r.Get("/", s.listPlugins)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getPlugin)
			r.Get("/history", s.pluginHistory)
			r.Post("/{action}", s.pluginAction)
		})
	})
	r.Get("/graph", s.graph)
	r.Get("/observers", s.observers)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server[H]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves the API on addr until ctx is done, then shuts the
// server down, waiting at most shutdownTimeout for open requests.
func (s *Server[H]) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin: listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve serves the API on ln until ctx is done.
func (s *Server[H]) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Stopping admin API", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	return nil
}

func (s *Server[H]) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Admin request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()))
	})
}
