package manifests

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoCodeAlone/pluggable/feeders"
)

// Extensions lists the file extensions LoadDir picks up.
var Extensions = []string{".yaml", ".yml", ".toml", ".json", ".jsonc"}

// IsManifestFile reports whether path has a manifest extension and is not a
// hidden file.
func IsManifestFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadFile decodes and validates the manifest stored at path. The format is
// chosen from the file extension. A manifest without an id takes the file name
// without its extension.
func LoadFile(path string) (*FileManifest, error) {
	feeder, err := feeders.ForFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	sum := sha256.Sum256(data)

	m := &FileManifest{}
	if err := feeder.Feed(m); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidManifest, path, err)
	}
	if m.PluginID == "" {
		m.PluginID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	m.Path = path
	m.Checksum = hex.EncodeToString(sum[:])

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadDir loads every manifest file directly inside dir, in file name order.
// Files that fail to load are skipped and their errors joined into the
// returned error, so callers can still use the manifests that did load. When
// two files declare the same id the first one wins.
func LoadDir(dir string) ([]*FileManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDir, err)
	}

	var (
		loaded []*FileManifest
		errs   []error
		seen   = make(map[string]string)
	)
	for _, entry := range entries {
		if entry.IsDir() || !IsManifestFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		m, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first, dup := seen[m.PluginID]; dup {
			errs = append(errs, fmt.Errorf("%w `%s`: %s and %s", ErrDuplicateManifest, m.PluginID, first, path))
			continue
		}
		seen[m.PluginID] = path
		loaded = append(loaded, m)
	}
	return loaded, errors.Join(errs...)
}
