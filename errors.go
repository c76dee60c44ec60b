package pluggable

import (
	"errors"
	"fmt"
)

// Registry errors
var (
	// Registration errors
	ErrDuplicatePlugin  = errors.New("plugin already registered")
	ErrCyclicDependency = errors.New("plugin introduces a dependency cycle which cannot be resolved")
	ErrNilManifest      = errors.New("manifest is nil")

	// Lifecycle errors
	ErrPluginNotFound      = errors.New("plugin not found")
	ErrPluginNotLoaded     = errors.New("plugin not loaded")
	ErrMissingConstructor  = errors.New("plugin was not registered with a constructor")
	ErrDependencyNotFound  = errors.New("dependency not found")
	ErrDependencyMismatch  = errors.New("dependency does not match plugin requirements")
	ErrPluginLoadFailed    = errors.New("plugin failed to load")
	ErrPluginEnableFailed  = errors.New("plugin failed to enable")
	ErrPluginDisableFailed = errors.New("plugin failed to disable")
	ErrPluginUnloadFailed  = errors.New("plugin failed to unload")
	ErrNilPlugin           = errors.New("plugin instance is nil")

	// Hook errors
	ErrDuplicateHook = errors.New("hook already registered")

	// Observer errors
	ErrNilObserver = errors.New("observer is nil")
)

// RegisterError describes why a manifest could not be registered.
type RegisterError struct {
	Plugin string
	Cycle  []string
	Err    error
}

func (e *RegisterError) Error() string {
	switch {
	case errors.Is(e.Err, ErrDuplicatePlugin):
		return fmt.Sprintf("duplicate plugin `%s` already registered", e.Plugin)
	case errors.Is(e.Err, ErrCyclicDependency):
		if len(e.Cycle) > 0 {
			return fmt.Sprintf("plugin `%s` introduces a dependency cycle which cannot be resolved: %v", e.Plugin, e.Cycle)
		}
		return fmt.Sprintf("plugin `%s` introduces a dependency cycle which cannot be resolved", e.Plugin)
	default:
		return fmt.Sprintf("plugin `%s`: %v", e.Plugin, e.Err)
	}
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}

// LoadError describes a failure while loading or enabling a plugin. Dependency is
// set when the failure concerns one of the plugin's dependencies, and Reason
// carries the mismatch explanation returned by a DependencyMatcher.
type LoadError struct {
	Plugin     string
	Dependency string
	Reason     string
	Err        error
	Cause      error
}

func (e *LoadError) Error() string {
	switch {
	case errors.Is(e.Err, ErrPluginNotFound):
		return fmt.Sprintf("plugin `%s` not found", e.Plugin)
	case errors.Is(e.Err, ErrMissingConstructor):
		return fmt.Sprintf("attempted to load plugin `%s` that was not registered with a constructor", e.Plugin)
	case errors.Is(e.Err, ErrDependencyNotFound):
		return fmt.Sprintf("dependency `%s` required by `%s` not found", e.Dependency, e.Plugin)
	case errors.Is(e.Err, ErrDependencyMismatch):
		return fmt.Sprintf("dependency `%s` required by `%s` does not match plugin requirements: %s",
			e.Dependency, e.Plugin, e.Reason)
	case e.Cause != nil:
		return fmt.Sprintf("plugin `%s`: %v: %v", e.Plugin, e.Err, e.Cause)
	default:
		return fmt.Sprintf("plugin `%s`: %v", e.Plugin, e.Err)
	}
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *LoadError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func notFound(id string) error {
	return &LoadError{Plugin: id, Err: ErrPluginNotFound}
}
