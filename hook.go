package pluggable

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// Slot identifies an extension point and the Go type of the hooks plugged into
// it. Slots are usually declared once as package-level variables:
//
//	var Greeters = pluggable.NewSlot[Greeter]("greeters")
type Slot[T any] struct {
	id string
}

// NewSlot declares a slot with the given id.
func NewSlot[T any](id string) Slot[T] {
	return Slot[T]{id: id}
}

// ID returns the slot identifier.
func (s Slot[T]) ID() string { return s.id }

type hookEntry struct {
	name  string
	value any
}

// HookRegistry stores the hooks registered by plugins, grouped by slot and then
// by plugin. Within a plugin, hooks keep their registration order and are told
// apart by name; the empty name denotes the plugin's unnamed hook.
//
// HookRegistry is safe for concurrent use.
type HookRegistry struct {
	mu    sync.RWMutex
	slots map[string]map[string][]hookEntry
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{slots: make(map[string]map[string][]hookEntry)}
}

// RegisterHook adds hook to slot on behalf of plugin. It fails with
// ErrDuplicateHook if the plugin already has a hook with the same name in slot.
func RegisterHook[T any](hr *HookRegistry, slot Slot[T], plugin, name string, hook T) error {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	byPlugin, ok := hr.slots[slot.id]
	if !ok {
		byPlugin = make(map[string][]hookEntry)
		hr.slots[slot.id] = byPlugin
	}
	hooks := byPlugin[plugin]
	if slices.ContainsFunc(hooks, func(h hookEntry) bool { return h.name == name }) {
		return fmt.Errorf("%w: plugin %q slot %q name %q", ErrDuplicateHook, plugin, slot.id, name)
	}
	byPlugin[plugin] = append(hooks, hookEntry{name: name, value: hook})
	return nil
}

// HasHook reports whether plugin has any hook in the slot with the given id.
func (hr *HookRegistry) HasHook(plugin, slot string) bool {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return len(hr.slots[slot][plugin]) > 0
}

// HasExactHook reports whether plugin has a hook with the given name in slot.
func (hr *HookRegistry) HasExactHook(plugin, slot, name string) bool {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return slices.ContainsFunc(hr.slots[slot][plugin], func(h hookEntry) bool { return h.name == name })
}

// FirstHook returns the first hook plugin registered in slot.
func FirstHook[T any](hr *HookRegistry, slot Slot[T], plugin string) (T, bool) {
	hr.mu.RLock()
	defer hr.mu.RUnlock()

	var zero T
	hooks := hr.slots[slot.id][plugin]
	if len(hooks) == 0 {
		return zero, false
	}
	v, ok := hooks[0].value.(T)
	return v, ok
}

// ExactHook returns the hook plugin registered in slot under name.
func ExactHook[T any](hr *HookRegistry, slot Slot[T], plugin, name string) (T, bool) {
	hr.mu.RLock()
	defer hr.mu.RUnlock()

	var zero T
	for _, h := range hr.slots[slot.id][plugin] {
		if h.name == name {
			v, ok := h.value.(T)
			return v, ok
		}
	}
	return zero, false
}

// RemoveHook removes and returns the hook plugin registered in slot under name.
func RemoveHook[T any](hr *HookRegistry, slot Slot[T], plugin, name string) (T, bool) {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	var zero T
	hooks := hr.slots[slot.id][plugin]
	i := slices.IndexFunc(hooks, func(h hookEntry) bool { return h.name == name })
	if i < 0 {
		return zero, false
	}
	v, ok := hooks[i].value.(T)
	if !ok {
		return zero, false
	}
	hr.slots[slot.id][plugin] = slices.Delete(hooks, i, i+1)
	return v, true
}

// RemovePluginHooks removes every hook plugin registered, in every slot.
func (hr *HookRegistry) RemovePluginHooks(plugin string) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	for _, byPlugin := range hr.slots {
		delete(byPlugin, plugin)
	}
}

// Compact drops the empty per-plugin and per-slot buckets left behind by removals.
func (hr *HookRegistry) Compact() {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	for slot, byPlugin := range hr.slots {
		for plugin, hooks := range byPlugin {
			if len(hooks) == 0 {
				delete(byPlugin, plugin)
			}
		}
		if len(byPlugin) == 0 {
			delete(hr.slots, slot)
		}
	}
}

// Slots returns the ids of the slots that currently hold a bucket, sorted.
func (hr *HookRegistry) Slots() []string {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	ids := make([]string, 0, len(hr.slots))
	for id := range hr.slots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// PluginSlots returns the ids of the slots plugin has at least one hook in, sorted.
func (hr *HookRegistry) PluginSlots(plugin string) []string {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	var ids []string
	for id, byPlugin := range hr.slots {
		if len(byPlugin[plugin]) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// PluginHooks iterates over the hooks plugin registered in slot, in registration
// order. The iteration works on a snapshot, so the body may register or remove
// hooks.
func PluginHooks[T any](hr *HookRegistry, slot Slot[T], plugin string) iter.Seq[T] {
	hr.mu.RLock()
	snapshot := slices.Clone(hr.slots[slot.id][plugin])
	hr.mu.RUnlock()

	return func(yield func(T) bool) {
		for _, h := range snapshot {
			v, ok := h.value.(T)
			if !ok {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

// SlotHooks iterates over every hook in slot together with the id of the plugin
// that registered it. Plugins are visited in sorted order and each plugin's hooks
// in registration order.
func SlotHooks[T any](hr *HookRegistry, slot Slot[T]) iter.Seq2[string, T] {
	hr.mu.RLock()
	byPlugin := hr.slots[slot.id]
	plugins := make([]string, 0, len(byPlugin))
	snapshot := make(map[string][]hookEntry, len(byPlugin))
	for plugin, hooks := range byPlugin {
		plugins = append(plugins, plugin)
		snapshot[plugin] = slices.Clone(hooks)
	}
	hr.mu.RUnlock()
	slices.Sort(plugins)

	return func(yield func(string, T) bool) {
		for _, plugin := range plugins {
			for _, h := range snapshot[plugin] {
				v, ok := h.value.(T)
				if !ok {
					continue
				}
				if !yield(plugin, v) {
					return
				}
			}
		}
	}
}
