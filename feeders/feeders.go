// Package feeders provides configuration feeders for reading data from
// environment variables and from YAML, TOML and JSON files.
package feeders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Feeder populates a configuration structure from a source.
type Feeder interface {
	Feed(target any) error
}

// Feeder errors
var (
	ErrFeederNoPath          = errors.New("feeder: file path is empty")
	ErrFeederUnsupportedFile = errors.New("feeder: unsupported file extension")
	ErrFeederInvalidTarget   = errors.New("feeder: expected pointer to struct")
	ErrFeederFieldNotSet     = errors.New("feeder: field cannot be set")
)

// ForFile returns the file feeder matching the extension of path.
func ForFile(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	case ".json", ".jsonc":
		return NewJSONFeeder(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrFeederUnsupportedFile, path)
	}
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrFeederNoPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
