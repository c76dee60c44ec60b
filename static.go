package pluggable

import (
	"slices"
	"sync"
)

// StaticSlot collects plugin initializers contributed by packages at program
// start-up. Packages declare a slot once and add to it from init functions, the
// way database/sql drivers register themselves:
//
//	var Builtins = pluggable.NewStaticSlot[*Host]("builtins")
//
//	func init() {
//		Builtins.Register(pluggable.NewSimpleManifest("echo", "echoes input"), newEcho)
//	}
//
// NewRegistryFromSlot then builds a registry containing everything collected.
type StaticSlot[H any] struct {
	name  string
	mu    sync.Mutex
	inits []Initializer[H]
}

// NewStaticSlot declares a static slot.
func NewStaticSlot[H any](name string) *StaticSlot[H] {
	return &StaticSlot[H]{name: name}
}

// Name returns the slot name.
func (s *StaticSlot[H]) Name() string { return s.name }

// Add appends an initializer to the slot.
func (s *StaticSlot[H]) Add(fn Initializer[H]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits = append(s.inits, fn)
}

// Register adds an initializer that registers manifest with ctor. Registration
// errors are logged through the registry's logger when the slot is applied.
func (s *StaticSlot[H]) Register(manifest Manifest, ctor Constructor) {
	s.Add(func(r *Registry[H]) {
		if _, err := r.Register(manifest, ctor); err != nil {
			r.Logger().Error("Failed to register static plugin", "slot", s.name, "error", err)
		}
	})
}

// Initializers returns a copy of the initializers collected so far.
func (s *StaticSlot[H]) Initializers() []Initializer[H] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.inits)
}

// NewRegistryFromSlot creates a registry populated by the slot's initializers.
func NewRegistryFromSlot[H any](slot *StaticSlot[H], opts ...Option) *Registry[H] {
	return NewRegistryFromInitializers(slot.Initializers(), opts...)
}
