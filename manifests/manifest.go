// Package manifests provides file based plugin manifests. A manifest file
// declares a plugin's id, version, kind and dependencies, plus optional minimum
// versions for those dependencies:
//
//	id: web
//	version: 1.4.0
//	kind: announcer
//	dependencies: [auth, db]
//	requires:
//	  db: 2.0.0
//
// Manifests can be written in YAML, TOML, JSON or JSON with comments.
package manifests

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/GoCodeAlone/pluggable"
)

// Manifest errors
var (
	ErrInvalidManifest       = errors.New("invalid manifest")
	ErrDuplicateManifest     = errors.New("duplicate manifest id")
	ErrUnversionedDependency = errors.New("dependency has no version")
	ErrVersionTooLow         = errors.New("dependency version is lower than required")
	ErrUndeclaredRequirement = errors.New("requirement on undeclared dependency")
	ErrReadDir               = errors.New("cannot read manifest directory")
)

var pluginIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// FileManifest is a plugin manifest loaded from a file.
type FileManifest struct {
	PluginID    string            `yaml:"id" toml:"id" json:"id" validate:"required,plugin_id"`
	Description string            `yaml:"description" toml:"description" json:"description"`
	Version     string            `yaml:"version" toml:"version" json:"version" validate:"omitempty,version"`
	Kind        string            `yaml:"kind" toml:"kind" json:"kind" validate:"omitempty,plugin_id"`
	DependsOn   []string          `yaml:"dependencies" toml:"dependencies" json:"dependencies" validate:"dive,plugin_id"`
	Requires    map[string]string `yaml:"requires" toml:"requires" json:"requires" validate:"dive,keys,plugin_id,endkeys,version"`
	Settings    map[string]any    `yaml:"settings" toml:"settings" json:"settings"`

	// Path is the file the manifest was loaded from.
	Path string `yaml:"-" toml:"-" json:"-"`
	// Checksum identifies the file content the manifest was decoded from.
	Checksum string `yaml:"-" toml:"-" json:"-"`
}

var (
	_ pluggable.Manifest          = (*FileManifest)(nil)
	_ pluggable.DependencyMatcher = (*FileManifest)(nil)
)

// ID returns the plugin id.
func (m *FileManifest) ID() string { return m.PluginID }

// Dependencies returns the declared dependencies, in order.
func (m *FileManifest) Dependencies() []string { return m.DependsOn }

// PluginVersion returns the canonical semantic version of the plugin, or "" if
// none was declared.
func (m *FileManifest) PluginVersion() string {
	if m.Version == "" {
		return ""
	}
	return semver.Canonical(withV(m.Version))
}

func (m *FileManifest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s plugin", m.PluginID)
	if m.Version != "" {
		fmt.Fprintf(&b, " %s", m.PluginVersion())
	}
	fmt.Fprintf(&b, "\n---\n%s\n", m.Description)
	return b.String()
}

// Validate checks the manifest's fields.
func (m *FileManifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w %s: %s", ErrInvalidManifest, m.source(), describe(err))
	}
	for _, dep := range slices.Sorted(maps.Keys(m.Requires)) {
		if !slices.Contains(m.DependsOn, dep) {
			return fmt.Errorf("%w %s: %w `%s`", ErrInvalidManifest, m.source(), ErrUndeclaredRequirement, dep)
		}
	}
	return nil
}

// DependencyMatches enforces the minimum versions listed under requires.
// Dependencies without a requirement always match.
func (m *FileManifest) DependencyMatches(dep pluggable.Manifest) error {
	minimum, ok := m.Requires[dep.ID()]
	if !ok {
		return nil
	}

	versioned, ok := dep.(interface{ PluginVersion() string })
	if !ok || versioned.PluginVersion() == "" {
		return fmt.Errorf("%w: %s requires %s", ErrUnversionedDependency, dep.ID(), withV(minimum))
	}
	if semver.Compare(versioned.PluginVersion(), withV(minimum)) < 0 {
		return fmt.Errorf("%w: %s %s < %s", ErrVersionTooLow, dep.ID(), versioned.PluginVersion(), withV(minimum))
	}
	return nil
}

func (m *FileManifest) source() string {
	if m.Path != "" {
		return m.Path
	}
	return m.PluginID
}

// withV adds the "v" prefix golang.org/x/mod/semver expects.
func withV(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}
