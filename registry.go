package pluggable

import (
	"slices"
	"sync"

	"github.com/GoCodeAlone/pluggable/internal/depgraph"
)

// pluginState tracks one registered plugin. instance is nil while the plugin is
// not loaded.
type pluginState struct {
	manifest Manifest
	enabled  bool
	ctor     Constructor
	instance Plugin
}

// Registry owns a set of registered plugins, their dependency graph and the hooks
// they register. H is the host type handed to plugins on every lifecycle call.
//
// All methods are safe for concurrent use. Lifecycle callbacks run while the
// registry holds its write lock: they may use the HookRegistry passed to Load but
// must not call back into the registry.
type Registry[H any] struct {
	mu      sync.RWMutex
	plugins map[string]*pluginState
	hooks   *HookRegistry
	graph   *depgraph.Graph
	logger  Logger

	// journal collects the transitions of the lifecycle call holding mu.
	journal []transition
}

// transition is one plugin state change, named by its event type.
type transition struct {
	eventType string
	plugin    string
}

type registryOptions struct {
	logger   Logger
	capacity int
}

// Option configures a Registry.
type Option func(*registryOptions)

// WithLogger sets the logger used by the registry.
func WithLogger(logger Logger) Option {
	return func(o *registryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCapacity preallocates room for n plugins.
func WithCapacity(n int) Option {
	return func(o *registryOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry[H any](opts ...Option) *Registry[H] {
	o := registryOptions{logger: NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[H]{
		plugins: make(map[string]*pluginState, o.capacity),
		hooks:   NewHookRegistry(),
		graph:   depgraph.New(o.capacity),
		logger:  o.logger,
	}
}

// NewRegistryFromInitializers creates a registry and runs each initializer
// against it, in order.
func NewRegistryFromInitializers[H any](inits []Initializer[H], opts ...Option) *Registry[H] {
	r := NewRegistry[H](append([]Option{WithCapacity(len(inits))}, opts...)...)
	for _, initFn := range inits {
		initFn(r)
	}
	return r
}

// Logger returns the registry's logger.
func (r *Registry[H]) Logger() Logger {
	return r.logger
}

// Hooks returns the hook registry shared by all plugins of this registry.
func (r *Registry[H]) Hooks() *HookRegistry {
	return r.hooks
}

// Register adds a plugin to the registry. ctor may be nil for plugins that will
// only ever be loaded with LoadWith.
//
// Registration fails if the id is already taken or if the manifest's
// dependencies would close a cycle; in both cases the registry is left unchanged.
// Dependencies do not need to be registered yet.
func (r *Registry[H]) Register(manifest Manifest, ctor Constructor) (string, error) {
	if manifest == nil {
		return "", ErrNilManifest
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := manifest.ID()
	if _, exists := r.plugins[id]; exists {
		return id, &RegisterError{Plugin: id, Err: ErrDuplicatePlugin}
	}

	hadNode := r.graph.HasNode(id)
	r.graph.AddNode(id)
	deps := manifest.Dependencies()
	var created []string
	for i, dep := range deps {
		if dep != id && !r.graph.HasNode(dep) {
			created = append(created, dep)
		}
		r.graph.AddEdge(id, dep, i)
	}

	if cycle := r.graph.FindCycle(); cycle != nil {
		for _, dep := range deps {
			r.graph.RemoveEdge(id, dep)
		}
		for _, dep := range created {
			if !r.graph.HasIncoming(dep) && !r.graph.HasOutgoing(dep) {
				r.graph.RemoveNode(dep)
			}
		}
		if !hadNode {
			r.graph.RemoveNode(id)
		}
		r.logger.Warn("Rejected plugin introducing dependency cycle", "plugin", id, "cycle", cycle)
		return id, &RegisterError{Plugin: id, Cycle: cycle, Err: ErrCyclicDependency}
	}

	r.plugins[id] = &pluginState{manifest: manifest, ctor: ctor}
	r.logger.Debug("Registered plugin", "plugin", id, "dependencies", deps)
	return id, nil
}

// Exists reports whether a plugin with the given id is registered.
func (r *Registry[H]) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[id]
	return ok
}

// IsLoaded reports whether the plugin is registered and loaded.
func (r *Registry[H]) IsLoaded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.plugins[id]
	return ok && st.instance != nil
}

// IsEnabled reports whether the plugin is registered and enabled.
func (r *Registry[H]) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.plugins[id]
	return ok && st.enabled
}

// PluginCount returns the number of registered plugins.
func (r *Registry[H]) PluginCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// LoadedPluginCount returns the number of loaded plugins.
func (r *Registry[H]) LoadedPluginCount() int {
	return len(r.LoadedPluginIDs())
}

// EnabledPluginCount returns the number of enabled plugins.
func (r *Registry[H]) EnabledPluginCount() int {
	return len(r.EnabledPluginIDs())
}

// PluginIDs returns the ids of all registered plugins, sorted.
func (r *Registry[H]) PluginIDs() []string {
	return r.collectIDs(func(*pluginState) bool { return true })
}

// LoadedPluginIDs returns the ids of all loaded plugins, sorted.
func (r *Registry[H]) LoadedPluginIDs() []string {
	return r.collectIDs(func(st *pluginState) bool { return st.instance != nil })
}

// EnabledPluginIDs returns the ids of all enabled plugins, sorted.
func (r *Registry[H]) EnabledPluginIDs() []string {
	return r.collectIDs(func(st *pluginState) bool { return st.enabled })
}

func (r *Registry[H]) collectIDs(keep func(*pluginState) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.plugins))
	for id, st := range r.plugins {
		if keep(st) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Manifest returns the manifest the plugin was registered with.
func (r *Registry[H]) Manifest(id string) (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.plugins[id]
	if !ok {
		return nil, false
	}
	return st.manifest, true
}

// Loaded returns the live instance of a loaded plugin.
func (r *Registry[H]) Loaded(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.plugins[id]
	if !ok || st.instance == nil {
		return nil, false
	}
	return st.instance, true
}

// Enabled returns the live instance of an enabled plugin.
func (r *Registry[H]) Enabled(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.plugins[id]
	if !ok || !st.enabled {
		return nil, false
	}
	return st.instance, true
}

// LoadedAs returns the loaded instance of plugin id if it has type T.
func LoadedAs[T any, H any](r *Registry[H], id string) (T, bool) {
	p, ok := r.Loaded(id)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := p.(T)
	return v, ok
}

// EnabledAs returns the enabled instance of plugin id if it has type T.
func EnabledAs[T any, H any](r *Registry[H], id string) (T, bool) {
	p, ok := r.Enabled(id)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := p.(T)
	return v, ok
}

// Dependents returns the ids of the plugins that declare a dependency on id,
// sorted.
func (r *Registry[H]) Dependents(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.Incoming(id)
}

// DependencyOrder returns the plugin and everything it transitively depends on,
// in the order Load would bring them up.
func (r *Registry[H]) DependencyOrder(id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.plugins[id]; !ok {
		return nil, notFound(id)
	}
	return r.graph.TopoOrderFrom(id)
}
