package manifests

import (
	"errors"

	"github.com/GoCodeAlone/pluggable"
)

// Verify checks a set of manifests as a whole: ids must be unique, the
// dependency graph must be acyclic, every dependency must be present and every
// requires entry must be satisfied. It returns one error per problem found, in
// manifest order.
func Verify(ms []*FileManifest) []error {
	reg := pluggable.NewRegistry[struct{}](pluggable.WithCapacity(len(ms)))

	var problems []error
	for _, m := range ms {
		if _, err := reg.Register(m, nil); err != nil {
			problems = append(problems, err)
		}
	}

	for _, m := range ms {
		if registered, ok := reg.Manifest(m.ID()); !ok || registered != pluggable.Manifest(m) {
			continue
		}
		for _, depID := range m.Dependencies() {
			dep, ok := reg.Manifest(depID)
			if !ok {
				problems = append(problems, &pluggable.LoadError{
					Plugin: m.ID(), Dependency: depID, Err: pluggable.ErrDependencyNotFound,
				})
				continue
			}
			if err := m.DependencyMatches(dep); err != nil {
				problems = append(problems, &pluggable.LoadError{
					Plugin: m.ID(), Dependency: depID, Reason: err.Error(),
					Err: errors.Join(pluggable.ErrDependencyMismatch, err),
				})
			}
		}
	}
	return problems
}
