// Package pluggable provides a dependency-aware plugin registry.
//
// Plugins are described by a Manifest and registered together with an optional
// Constructor. The registry tracks the dependency graph between plugins, refuses
// registrations that would introduce a cycle, and drives each plugin through its
// lifecycle: registered, loaded and enabled. Loading or enabling a plugin first
// loads or enables its dependencies, in the order they were declared.
//
// Plugins interact with the host through a host value of type H supplied on each
// lifecycle call, and with each other through typed hooks stored in the
// registry's HookRegistry.
//
// Basic usage:
//
//	reg := pluggable.NewRegistry[*App]()
//	reg.Register(pluggable.NewSimpleManifest("greeter", "says hello"), newGreeter)
//	if err := reg.Enable(ctx, "greeter", app); err != nil {
//		log.Fatal(err)
//	}
package pluggable

import "context"

// Plugin is a live plugin instance. A plugin can be any value; it takes part in
// the lifecycle by implementing any of Loadable, Unloadable, Enableable and
// Disableable for the registry's host type.
type Plugin any

// Constructor creates a fresh plugin instance. It is invoked each time a
// registered plugin is loaded.
type Constructor func() (Plugin, error)

// Loadable is implemented by plugins that need to set up state or register hooks
// when they are loaded.
//
// Load is called after every dependency has been loaded. Hooks must be
// registered under the plugin's own id; they are removed automatically when the
// plugin is unloaded or when Load fails.
type Loadable[H any] interface {
	Load(ctx context.Context, hooks *HookRegistry, host H) error
}

// Unloadable is implemented by plugins that need to release resources when they
// are unloaded.
type Unloadable[H any] interface {
	Unload(ctx context.Context, host H) error
}

// Enableable is implemented by plugins that do work when they are enabled.
// Enable is called after every dependency has been enabled.
type Enableable[H any] interface {
	Enable(ctx context.Context, host H) error
}

// Disableable is implemented by plugins that need to stop work when disabled.
type Disableable[H any] interface {
	Disable(ctx context.Context, host H) error
}

// Initializer populates a registry, typically by registering a set of plugins.
type Initializer[H any] func(*Registry[H])
