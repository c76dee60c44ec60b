package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GoCodeAlone/pluggable"
)

// PluginStatus describes a registered plugin.
type PluginStatus struct {
	ID           string   `json:"id"`
	Description  string   `json:"description,omitempty"`
	Version      string   `json:"version,omitempty"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
	Loaded       bool     `json:"loaded"`
	Enabled      bool     `json:"enabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server[H]) status(id string) (PluginStatus, bool) {
	m, ok := s.registry.Manifest(id)
	if !ok {
		return PluginStatus{}, false
	}
	st := PluginStatus{
		ID:           id,
		Dependencies: nonNil(m.Dependencies()),
		Dependents:   nonNil(s.registry.Dependents(id)),
		Loaded:       s.registry.IsLoaded(id),
		Enabled:      s.registry.IsEnabled(id),
	}
	if d, ok := m.(interface{ Description() string }); ok {
		st.Description = d.Description()
	}
	if v, ok := m.(interface{ PluginVersion() string }); ok {
		st.Version = v.PluginVersion()
	}
	return st, true
}

func (s *Server[H]) listPlugins(w http.ResponseWriter, _ *http.Request) {
	ids := s.registry.PluginIDs()
	out := make([]PluginStatus, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.status(id); ok {
			out = append(out, st)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server[H]) getPlugin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.status(id)
	if !ok {
		writeError(w, &pluggable.LoadError{Plugin: id, Err: pluggable.ErrPluginNotFound})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server[H]) pluginAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "load":
		err = s.registry.Load(ctx, id, s.host)
	case "enable":
		err = s.registry.Enable(ctx, id, s.host)
	case "disable":
		err = s.registry.Disable(ctx, id, s.host)
	case "unload":
		err = s.registry.Unload(ctx, id, s.host)
	default:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown action " + strconv.Quote(action)})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	st, _ := s.status(id)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server[H]) pluginHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history is not recorded"})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	events, err := s.history.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// graphResponse maps each plugin to its dependency order, dependencies first.
// Plugins whose order cannot be computed are listed under errors.
type graphResponse struct {
	Order  map[string][]string `json:"order"`
	Errors map[string]string   `json:"errors,omitempty"`
}

func (s *Server[H]) graph(w http.ResponseWriter, _ *http.Request) {
	resp := graphResponse{Order: make(map[string][]string)}
	for _, id := range s.registry.PluginIDs() {
		order, err := s.registry.DependencyOrder(id)
		if err != nil {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[id] = err.Error()
			continue
		}
		resp.Order[id] = order
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server[H]) observers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetObservers())
}

// statusFor maps registry errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pluggable.ErrPluginNotFound):
		return http.StatusNotFound
	case errors.Is(err, pluggable.ErrPluginNotLoaded):
		return http.StatusConflict
	case errors.Is(err, pluggable.ErrDependencyNotFound),
		errors.Is(err, pluggable.ErrDependencyMismatch),
		errors.Is(err, pluggable.ErrMissingConstructor):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
