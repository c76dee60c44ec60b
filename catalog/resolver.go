package catalog

import (
	"errors"
	"fmt"

	"github.com/GoCodeAlone/pluggable"
	"github.com/GoCodeAlone/pluggable/manifests"
)

// DefaultKind is used for manifests that do not declare a kind.
const DefaultKind = "noop"

// ErrUnknownKind is returned when no factory is registered for a manifest kind.
var ErrUnknownKind = errors.New("unknown plugin kind")

// Resolver maps a manifest to the constructor used to instantiate its plugin.
type Resolver interface {
	Resolve(m *manifests.FileManifest) (pluggable.Constructor, error)
}

// Factory builds a plugin instance for a manifest.
type Factory func(m *manifests.FileManifest) (pluggable.Plugin, error)

// Kinds is a Resolver keyed by manifest kind.
type Kinds map[string]Factory

// Resolve returns a constructor calling the factory registered for m's kind.
func (k Kinds) Resolve(m *manifests.FileManifest) (pluggable.Constructor, error) {
	kind := m.Kind
	if kind == "" {
		kind = DefaultKind
	}
	factory, ok := k[kind]
	if !ok {
		return nil, fmt.Errorf("%w `%s` for plugin `%s`", ErrUnknownKind, kind, m.ID())
	}
	return func() (pluggable.Plugin, error) {
		return factory(m)
	}, nil
}
