// Package builtin holds the plugins compiled into pluginctl and the plugin
// kinds manifests can name.
package builtin

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/pluggable"
	"github.com/GoCodeAlone/pluggable/catalog"
	"github.com/GoCodeAlone/pluggable/manifests"
)

// Host is passed to every plugin lifecycle callback.
type Host struct {
	Logger pluggable.Logger
}

// Announcer is a hook returning the message a plugin announces.
type Announcer func() string

// AnnouncerSlot is the hook slot announcers register under.
var AnnouncerSlot = pluggable.NewSlot[Announcer]("announcer")

// Plugins is the static slot holding the plugins compiled into pluginctl.
var Plugins = pluggable.NewStaticSlot[*Host]("pluginctl.builtins")

// CoreID is the id of the builtin announcer every daemon carries.
const CoreID = "pluginctl"

func init() {
	Plugins.Register(
		pluggable.NewSimpleManifest(CoreID, "announces the pluginctl daemon"),
		func() (pluggable.Plugin, error) {
			return &announcer{id: CoreID, message: "pluginctl is running"}, nil
		},
	)
}

// Kinds returns the plugin kinds manifests may declare.
func Kinds() catalog.Kinds {
	return catalog.Kinds{
		"noop":      newNoop,
		"announcer": newAnnouncer,
	}
}

func newNoop(*manifests.FileManifest) (pluggable.Plugin, error) {
	return struct{}{}, nil
}

func newAnnouncer(m *manifests.FileManifest) (pluggable.Plugin, error) {
	msg := m.Description
	if raw, ok := m.Settings["message"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("announcer `%s`: message must be a string, got %T", m.ID(), raw)
		}
		msg = s
	}
	if msg == "" {
		msg = m.ID() + " is here"
	}
	return &announcer{id: m.ID(), message: msg}, nil
}

// announcer registers an Announcer hook and logs each of its transitions.
type announcer struct {
	id      string
	message string
}

func (a *announcer) Load(_ context.Context, hooks *pluggable.HookRegistry, host *Host) error {
	message := a.message
	if err := pluggable.RegisterHook(hooks, AnnouncerSlot, a.id, "message", Announcer(func() string { return message })); err != nil {
		return err
	}
	host.Logger.Info("Announcer loaded", "plugin", a.id)
	return nil
}

func (a *announcer) Enable(_ context.Context, host *Host) error {
	host.Logger.Info(a.message, "plugin", a.id)
	return nil
}

func (a *announcer) Disable(_ context.Context, host *Host) error {
	host.Logger.Info("Announcer disabled", "plugin", a.id)
	return nil
}

func (a *announcer) Unload(_ context.Context, host *Host) error {
	host.Logger.Info("Announcer unloaded", "plugin", a.id)
	return nil
}

// Announcements returns the message of every announcer hook in hooks, keyed by
// plugin id.
func Announcements(hooks *pluggable.HookRegistry) map[string]string {
	out := make(map[string]string)
	for plugin, announce := range pluggable.SlotHooks(hooks, AnnouncerSlot) {
		out[plugin] = announce()
	}
	return out
}
