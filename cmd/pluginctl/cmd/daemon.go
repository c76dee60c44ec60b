package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/GoCodeAlone/pluggable"
	"github.com/GoCodeAlone/pluggable/admin"
	"github.com/GoCodeAlone/pluggable/catalog"
	"github.com/GoCodeAlone/pluggable/cmd/pluginctl/internal/builtin"
	"github.com/GoCodeAlone/pluggable/cmd/pluginctl/internal/logging"
	"github.com/GoCodeAlone/pluggable/config"
	"github.com/GoCodeAlone/pluggable/metrics"
	"github.com/GoCodeAlone/pluggable/store"
)

// daemon is a running pluginctl registry with everything attached to it.
type daemon struct {
	cfg      *config.Config
	logger   *logging.Logger
	host     *builtin.Host
	registry *pluggable.ObservableRegistry[*builtin.Host]
	store    *store.Store
	metrics  *metrics.Metrics
	catalog  *catalog.Catalog[*builtin.Host]
	admin    *admin.Server[*builtin.Host]
}

// startDaemon builds the registry from the builtin plugins and the manifest
// directory, re-enables what was enabled before and starts watching for
// manifest changes. The watcher stops when ctx is done.
func startDaemon(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*daemon, error) {
	if err := os.MkdirAll(cfg.ManifestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}

	st, err := store.Open(ctx, cfg.StatePath)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		cfg:    cfg,
		logger: logger,
		host:   &builtin.Host{Logger: logger.With("plugin")},
		store:  st,
	}
	d.registry = pluggable.WrapObservable(pluggable.NewRegistryFromSlot(
		builtin.Plugins,
		pluggable.WithLogger(logger.With("registry")),
	))
	d.metrics = metrics.New(metrics.DefaultNamespace, d.registry)

	for _, observer := range []pluggable.Observer{d.store, d.metrics} {
		if err := d.registry.RegisterObserver(observer); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	d.catalog = catalog.New(cfg.ManifestDir, d.registry, builtin.Kinds(), d.host,
		catalog.WithLogger(logger.With("catalog")),
		catalog.WithDebounce(cfg.Debounce),
	)
	result, err := d.catalog.Sync(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	for _, p := range result.Errors {
		logger.Warn("Skipping plugin manifest", "error", p)
	}

	if _, err := store.Restore(ctx, d.store, d.registry, d.host, logger); err != nil {
		logger.Error("Failed to restore some plugins", "error", err)
	}
	for _, id := range append([]string{builtin.CoreID}, cfg.Enable...) {
		if err := d.registry.Enable(ctx, id, d.host); err != nil {
			logger.Error("Failed to enable plugin", "plugin", id, "error", err)
		}
	}

	if cfg.Watch {
		if err := d.catalog.Watch(ctx); err != nil {
			d.close(ctx)
			return nil, err
		}
	}
	if cfg.Rescan != "" {
		if err := d.catalog.Schedule(cfg.Rescan); err != nil {
			d.close(ctx)
			return nil, err
		}
	}

	d.admin = admin.NewServer(d.registry, d.host,
		admin.WithLogger(logger.With("admin")),
		admin.WithMetrics(d.metrics.Handler()),
		admin.WithHistory(d.store),
	)
	return d, nil
}

// close stops the catalog and unloads every plugin. The store stops observing
// first so the enabled set it holds is the one restored on the next start.
func (d *daemon) close(ctx context.Context) {
	if err := d.catalog.Close(); err != nil {
		d.logger.Warn("Failed to stop manifest watcher", "error", err)
	}
	if err := d.registry.UnregisterObserver(d.store); err != nil {
		d.logger.Warn("Failed to detach state store", "error", err)
	}

	loaded := d.registry.LoadedPluginIDs()
	slices.Reverse(loaded)
	for _, id := range loaded {
		if err := d.registry.Unload(ctx, id, d.host); err != nil {
			d.logger.Warn("Failed to unload plugin", "plugin", id, "error", err)
		}
	}

	if err := d.store.Close(); err != nil {
		d.logger.Warn("Failed to close state store", "error", err)
	}
}
