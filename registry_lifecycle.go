package pluggable

import (
	"context"
	"errors"
)

// Load brings a plugin into the loaded state, constructing it with the
// constructor it was registered with. Dependencies that are not loaded yet are
// loaded first, in declaration order. Loading an already loaded plugin is a no-op.
func (r *Registry[H]) Load(ctx context.Context, id string, host H) error {
	_, err := r.load(ctx, id, nil, host)
	return err
}

// LoadWith loads a plugin using the supplied instance instead of its
// constructor. Dependencies are handled exactly as in Load.
func (r *Registry[H]) LoadWith(ctx context.Context, id string, plugin Plugin, host H) error {
	if plugin == nil {
		return &LoadError{Plugin: id, Err: ErrPluginLoadFailed, Cause: ErrNilPlugin}
	}
	_, err := r.load(ctx, id, plugin, host)
	return err
}

func (r *Registry[H]) load(ctx context.Context, id string, supplied Plugin, host H) ([]transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.loadLocked(ctx, id, supplied, host)
	return r.takeJournal(), err
}

// record notes a transition made by the current lifecycle call. Callers hold mu.
func (r *Registry[H]) record(eventType, id string) {
	r.journal = append(r.journal, transition{eventType: eventType, plugin: id})
}

func (r *Registry[H]) takeJournal() []transition {
	j := r.journal
	r.journal = nil
	return j
}

func (r *Registry[H]) loadLocked(ctx context.Context, id string, supplied Plugin, host H) error {
	st, ok := r.plugins[id]
	if !ok {
		return notFound(id)
	}
	if st.instance != nil {
		return nil
	}

	if err := r.loadDependencies(ctx, id, st, host); err != nil {
		return err
	}

	instance := supplied
	if instance == nil {
		if st.ctor == nil {
			return &LoadError{Plugin: id, Err: ErrMissingConstructor}
		}
		p, err := st.ctor()
		if err != nil {
			return &LoadError{Plugin: id, Err: ErrPluginLoadFailed, Cause: err}
		}
		if p == nil {
			return &LoadError{Plugin: id, Err: ErrPluginLoadFailed, Cause: ErrNilPlugin}
		}
		instance = p
	}

	if l, ok := instance.(Loadable[H]); ok {
		if err := l.Load(ctx, r.hooks, host); err != nil {
			r.hooks.RemovePluginHooks(id)
			r.logger.Error("Plugin failed to load", "plugin", id, "error", err)
			return &LoadError{Plugin: id, Err: ErrPluginLoadFailed, Cause: err}
		}
	}

	st.instance = instance
	r.record(EventTypePluginLoaded, id)
	r.logger.Debug("Loaded plugin", "plugin", id)
	return nil
}

func (r *Registry[H]) loadDependencies(ctx context.Context, id string, st *pluginState, host H) error {
	for _, dep := range r.graph.Neighbors(id) {
		depState, ok := r.plugins[dep]
		if !ok {
			return &LoadError{Plugin: id, Dependency: dep, Err: ErrDependencyNotFound}
		}
		if err := dependencyMatches(st.manifest, depState.manifest); err != nil {
			return &LoadError{Plugin: id, Dependency: dep, Reason: err.Error(), Err: ErrDependencyMismatch}
		}
		if depState.instance != nil {
			continue
		}
		if err := r.loadLocked(ctx, dep, nil, host); err != nil {
			return err
		}
	}
	return nil
}

// Unload disables the plugin if needed, calls its Unload hook, removes every
// hook it registered and drops the instance. A later Load constructs a new one.
// Errors returned by the plugin's callbacks are reported, but the plugin ends up
// unloaded regardless.
func (r *Registry[H]) Unload(ctx context.Context, id string, host H) error {
	_, err := r.unload(ctx, id, host)
	return err
}

func (r *Registry[H]) unload(ctx context.Context, id string, host H) ([]transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.plugins[id]
	if !ok {
		return nil, notFound(id)
	}
	if st.instance == nil {
		return nil, &LoadError{Plugin: id, Err: ErrPluginNotLoaded}
	}
	err := r.unloadLocked(ctx, id, st, host)
	return r.takeJournal(), err
}

func (r *Registry[H]) unloadLocked(ctx context.Context, id string, st *pluginState, host H) error {
	var errs []error
	if st.enabled {
		errs = append(errs, r.disableLocked(ctx, id, st, host))
	}
	if u, ok := st.instance.(Unloadable[H]); ok {
		if err := u.Unload(ctx, host); err != nil {
			r.logger.Error("Plugin failed to unload cleanly", "plugin", id, "error", err)
			errs = append(errs, &LoadError{Plugin: id, Err: ErrPluginUnloadFailed, Cause: err})
		}
	}
	r.hooks.RemovePluginHooks(id)
	st.instance = nil
	r.record(EventTypePluginUnloaded, id)
	r.logger.Debug("Unloaded plugin", "plugin", id)
	return errors.Join(errs...)
}

// Enable loads the plugin if needed, enables its dependencies in declaration
// order and then enables the plugin itself. Enabling an enabled plugin is a
// no-op. If the plugin's Enable hook fails it stays loaded but disabled.
func (r *Registry[H]) Enable(ctx context.Context, id string, host H) error {
	_, err := r.enable(ctx, id, host)
	return err
}

func (r *Registry[H]) enable(ctx context.Context, id string, host H) ([]transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.enableLocked(ctx, id, host)
	return r.takeJournal(), err
}

func (r *Registry[H]) enableLocked(ctx context.Context, id string, host H) error {
	st, ok := r.plugins[id]
	if !ok {
		return notFound(id)
	}
	if st.enabled {
		return nil
	}

	if err := r.loadLocked(ctx, id, nil, host); err != nil {
		return err
	}
	for _, dep := range r.graph.Neighbors(id) {
		if err := r.enableLocked(ctx, dep, host); err != nil {
			return err
		}
	}

	if e, ok := st.instance.(Enableable[H]); ok {
		if err := e.Enable(ctx, host); err != nil {
			r.logger.Error("Plugin failed to enable", "plugin", id, "error", err)
			return &LoadError{Plugin: id, Err: ErrPluginEnableFailed, Cause: err}
		}
	}
	st.enabled = true
	r.record(EventTypePluginEnabled, id)
	r.logger.Info("Enabled plugin", "plugin", id)
	return nil
}

// Disable disables an enabled plugin. Plugins depending on it are left as they
// are. Disabling a plugin that is not enabled is a no-op; the plugin is marked
// disabled even when its Disable hook fails.
func (r *Registry[H]) Disable(ctx context.Context, id string, host H) error {
	_, err := r.disable(ctx, id, host)
	return err
}

func (r *Registry[H]) disable(ctx context.Context, id string, host H) ([]transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.plugins[id]
	if !ok {
		return nil, notFound(id)
	}
	if !st.enabled {
		return nil, nil
	}
	err := r.disableLocked(ctx, id, st, host)
	return r.takeJournal(), err
}

func (r *Registry[H]) disableLocked(ctx context.Context, id string, st *pluginState, host H) error {
	st.enabled = false
	r.record(EventTypePluginDisabled, id)
	r.logger.Info("Disabled plugin", "plugin", id)
	if d, ok := st.instance.(Disableable[H]); ok {
		if err := d.Disable(ctx, host); err != nil {
			r.logger.Error("Plugin failed to disable cleanly", "plugin", id, "error", err)
			return &LoadError{Plugin: id, Err: ErrPluginDisableFailed, Cause: err}
		}
	}
	return nil
}

// Unregister removes a plugin from the registry, disabling and unloading it
// first when needed. If other plugins still depend on it, its node stays in the
// dependency graph so that loading them reports the missing dependency.
func (r *Registry[H]) Unregister(ctx context.Context, id string, host H) error {
	_, err := r.unregister(ctx, id, host)
	return err
}

func (r *Registry[H]) unregister(ctx context.Context, id string, host H) ([]transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.plugins[id]
	if !ok {
		return nil, notFound(id)
	}

	var err error
	if st.instance != nil {
		err = r.unloadLocked(ctx, id, st, host)
	}
	delete(r.plugins, id)

	for _, dep := range r.graph.Neighbors(id) {
		r.graph.RemoveEdge(id, dep)
		if _, registered := r.plugins[dep]; !registered && !r.graph.HasIncoming(dep) && !r.graph.HasOutgoing(dep) {
			r.graph.RemoveNode(dep)
		}
	}
	if !r.graph.HasIncoming(id) {
		r.graph.RemoveNode(id)
	}

	r.record(EventTypePluginUnregistered, id)
	r.logger.Debug("Unregistered plugin", "plugin", id)
	return r.takeJournal(), err
}
