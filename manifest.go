package pluggable

import (
	"fmt"
	"slices"
)

// Manifest describes a plugin to the registry. The registry only needs the
// plugin's identifier and the identifiers of the plugins it depends on; anything
// else a manifest carries is up to the implementation.
type Manifest interface {
	// ID returns the unique identifier of the plugin.
	ID() string

	// Dependencies returns the identifiers of the plugins this plugin depends on.
	// Dependencies are loaded and enabled in the order they are returned.
	Dependencies() []string
}

// DependencyMatcher is an optional interface for manifests that place
// requirements on their dependencies, such as a minimum version. A non-nil error
// rejects the dependency and its message is reported as the mismatch reason.
type DependencyMatcher interface {
	DependencyMatches(dependency Manifest) error
}

// SimpleManifest is a Manifest with an id, a description and a list of
// dependencies.
type SimpleManifest struct {
	id           string
	description  string
	dependencies []string
}

// NewSimpleManifest creates a manifest without dependencies.
func NewSimpleManifest(id, description string) *SimpleManifest {
	return &SimpleManifest{id: id, description: description}
}

// NewSimpleManifestWithDependencies creates a manifest depending on deps, in order.
func NewSimpleManifestWithDependencies(id, description string, deps []string) *SimpleManifest {
	return &SimpleManifest{id: id, description: description, dependencies: slices.Clone(deps)}
}

func (m *SimpleManifest) ID() string { return m.id }

func (m *SimpleManifest) Dependencies() []string { return m.dependencies }

func (m *SimpleManifest) Description() string { return m.description }

func (m *SimpleManifest) String() string {
	return fmt.Sprintf("%s plugin\n---\n%s\n", m.id, m.description)
}

func dependencyMatches(m, dep Manifest) error {
	matcher, ok := m.(DependencyMatcher)
	if !ok {
		return nil
	}
	return matcher.DependencyMatches(dep)
}
