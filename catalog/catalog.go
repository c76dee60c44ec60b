// Package catalog keeps a directory of manifest files in sync with a plugin
// registry. Plugins whose file appears are registered, plugins whose file
// disappears are unregistered and plugins whose file changed are registered
// again, keeping their enabled state. A file that is present but fails to load
// leaves its plugin registered as it was until the file loads again.
package catalog

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/pluggable"
	"github.com/GoCodeAlone/pluggable/manifests"
)

// DefaultDebounce is the delay between the last filesystem change and the
// rescan it triggers.
const DefaultDebounce = 250 * time.Millisecond

// SyncResult reports what a Sync changed.
type SyncResult struct {
	Added   []string
	Updated []string
	Removed []string
	Errors  []error
}

// Changed reports whether the sync modified the registry.
func (r SyncResult) Changed() bool {
	return len(r.Added)+len(r.Updated)+len(r.Removed) > 0
}

// Catalog registers the plugins described by the manifest files of a directory.
type Catalog[H any] struct {
	dir      string
	registry *pluggable.ObservableRegistry[H]
	resolver Resolver
	host     H
	logger   pluggable.Logger
	debounce time.Duration

	syncMu sync.Mutex
	known  map[string]*manifests.FileManifest

	lifecycleMu sync.Mutex
	watcher     *fsnotify.Watcher
	cron        *cron.Cron
}

// Option configures a Catalog.
type Option func(*options)

type options struct {
	logger   pluggable.Logger
	debounce time.Duration
}

// WithLogger sets the catalog's logger.
func WithLogger(logger pluggable.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDebounce sets the delay used by Watch.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// New creates a catalog for dir. host is handed to plugins that are unloaded or
// re-enabled while syncing.
func New[H any](dir string, registry *pluggable.ObservableRegistry[H], resolver Resolver, host H, opts ...Option) *Catalog[H] {
	o := options{logger: registry.Logger(), debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}
	return &Catalog[H]{
		dir:      dir,
		registry: registry,
		resolver: resolver,
		host:     host,
		logger:   o.logger,
		debounce: o.debounce,
		known:    make(map[string]*manifests.FileManifest),
	}
}

// Dir returns the watched directory.
func (c *Catalog[H]) Dir() string { return c.dir }

// Manifests returns the manifests currently registered from the directory,
// sorted by id.
func (c *Catalog[H]) Manifests() []*manifests.FileManifest {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	out := make([]*manifests.FileManifest, 0, len(c.known))
	for _, m := range c.known {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *manifests.FileManifest) int {
		switch {
		case a.PluginID < b.PluginID:
			return -1
		case a.PluginID > b.PluginID:
			return 1
		}
		return 0
	})
	return out
}

// Sync rescans the directory and applies the differences to the registry.
// Problems with individual files or plugins are collected in the result; an
// error is returned only if the directory could not be read.
func (c *Catalog[H]) Sync(ctx context.Context) (SyncResult, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	var result SyncResult
	loaded, err := manifests.LoadDir(c.dir)
	if errors.Is(err, manifests.ErrReadDir) {
		return result, err
	}
	if err != nil {
		result.Errors = append(result.Errors, err)
	}

	current := make(map[string]*manifests.FileManifest, len(loaded))
	fromPath := make(map[string]bool, len(loaded))
	for _, m := range loaded {
		current[m.PluginID] = m
		fromPath[m.Path] = true
	}

	changed := make(map[string]bool)
	reenable := make(map[string]bool)
	for _, id := range sortedKeys(c.known) {
		next, stillThere := current[id]
		if stillThere && next.Checksum == c.known[id].Checksum {
			continue
		}
		if !stillThere && failedToLoad(c.known[id].Path, fromPath) {
			c.logger.Warn("Keeping plugin whose manifest failed to load", "plugin", id, "path", c.known[id].Path)
			continue
		}
		if stillThere {
			changed[id] = true
			reenable[id] = c.registry.IsEnabled(id)
		}
		if err := c.registry.Unregister(ctx, id, c.host); err != nil {
			result.Errors = append(result.Errors, err)
		}
		delete(c.known, id)
		if !stillThere {
			result.Removed = append(result.Removed, id)
		}
	}

	for _, id := range sortedKeys(current) {
		if _, ok := c.known[id]; ok {
			continue
		}
		m := current[id]
		ctor, err := c.resolver.Resolve(m)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if _, err := c.registry.Register(m, ctor); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		c.known[id] = m
		if changed[id] {
			result.Updated = append(result.Updated, id)
		} else {
			result.Added = append(result.Added, id)
		}
	}

	for _, id := range sortedKeys(reenable) {
		if !reenable[id] || c.known[id] == nil {
			continue
		}
		if err := c.registry.Enable(ctx, id, c.host); err != nil {
			result.Errors = append(result.Errors, err)
		}
	}

	if result.Changed() || len(result.Errors) > 0 {
		c.logger.Info("Synced plugin manifests", "dir", c.dir,
			"added", result.Added, "updated", result.Updated, "removed", result.Removed, "errors", len(result.Errors))
	}
	return result, nil
}

// Close stops the watcher and the scheduled rescans.
func (c *Catalog[H]) Close() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.cron != nil {
		<-c.cron.Stop().Done()
		c.cron = nil
	}
	if c.watcher != nil {
		err := c.watcher.Close()
		c.watcher = nil
		return err
	}
	return nil
}

// failedToLoad reports whether the manifest file at path is still on disk
// without having produced a manifest in this scan.
func failedToLoad(path string, fromPath map[string]bool) bool {
	if path == "" || fromPath[path] {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
