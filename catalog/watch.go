package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/pluggable/manifests"
)

// ErrAlreadyRunning is returned when Watch or Schedule is called twice.
var ErrAlreadyRunning = errors.New("catalog: already running")

// Watch starts watching the directory and syncs after manifest files change.
// Bursts of changes are coalesced into one sync. Watching stops when ctx is
// done or Close is called.
func (c *Catalog[H]) Watch(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.watcher != nil {
		return ErrAlreadyRunning
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}
	c.watcher = watcher

	go c.processEvents(ctx, watcher)

	c.logger.Info("Watching plugin manifests", "dir", c.dir, "debounce", c.debounce)
	return nil
}

func (c *Catalog[H]) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !manifests.IsManifestFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			c.logger.Debug("Manifest change detected", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			trigger = timer.C

		case <-trigger:
			trigger = nil
			c.syncAndLog(ctx, "watch")

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("Watcher error", "dir", c.dir, "error", err)
		}
	}
}

// Schedule runs a sync on the given cron spec, for example "@every 5m", until
// Close is called.
func (c *Catalog[H]) Schedule(spec string) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.cron != nil {
		return ErrAlreadyRunning
	}
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(spec, func() {
		c.syncAndLog(context.Background(), "schedule")
	}); err != nil {
		return fmt.Errorf("invalid rescan schedule %q: %w", spec, err)
	}
	scheduler.Start()
	c.cron = scheduler

	c.logger.Info("Scheduled plugin manifest rescans", "dir", c.dir, "schedule", spec)
	return nil
}

func (c *Catalog[H]) syncAndLog(ctx context.Context, trigger string) {
	result, err := c.Sync(ctx)
	if err != nil {
		c.logger.Error("Manifest sync failed", "trigger", trigger, "error", err)
		return
	}
	for _, syncErr := range result.Errors {
		c.logger.Warn("Manifest sync problem", "trigger", trigger, "error", syncErr)
	}
}
