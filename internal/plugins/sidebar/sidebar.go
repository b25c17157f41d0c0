// Package sidebar applies the dock toolbar policy: it keeps the toolbars
// of configured areas hidden and keeps a log of toggles coming and going.
package sidebar

import (
	"context"
	"slices"
	"sync"

	"github.com/soyeahso/leechcore/internal/dock"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugin"
)

// ID is the plugin's unique ID.
const ID = "org.leechcore.sidebar"

// Change is one toggle added to or removed from a toolbar.
type Change struct {
	Dock    string    `json:"dock"`
	Area    dock.Area `json:"area"`
	Removed bool      `json:"removed,omitempty"`
}

// Plugin is the toolbar policy plugin.
type Plugin struct {
	hide []dock.Area
	log  *logging.Logger

	mu      sync.Mutex
	changes []Change
	vetoed  int
}

// New creates the plugin. Unknown area names are ignored.
func New(hideAreas []string) *Plugin {
	p := &Plugin{log: logging.Nop()}
	for _, s := range hideAreas {
		if a, err := dock.ParseArea(s); err == nil {
			p.hide = append(p.hide, a)
		}
	}
	return p
}

func (p *Plugin) ID() string   { return ID }
func (p *Plugin) Name() string { return "Sidebar" }
func (p *Plugin) Info() string { return "Controls which dock toolbars are shown" }

func (p *Plugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapHookListener}
}

func (p *Plugin) Init(_ context.Context, px plugin.Proxy) error {
	p.log = px.Log()
	scope := px.Hooks()

	if _, err := hooks.Register(scope, dock.DockBarWillBeShown, "hide-areas", p.barWillBeShown); err != nil {
		return err
	}
	if _, err := hooks.Register(scope, dock.AddingDockAction, "track-add", func(_ *hooks.Proxy, ev dock.ActionEvent) {
		p.record(Change{Dock: ev.Dock.ID, Area: ev.Area})
	}); err != nil {
		return err
	}
	_, err := hooks.Register(scope, dock.RemovingDockAction, "track-remove", func(_ *hooks.Proxy, ev dock.ActionEvent) {
		p.record(Change{Dock: ev.Dock.ID, Area: ev.Area, Removed: true})
	})
	return err
}

func (p *Plugin) SecondInit(context.Context) error { return nil }
func (p *Plugin) Release(context.Context) error    { return nil }

func (p *Plugin) barWillBeShown(proxy *hooks.Proxy, ev dock.BarEvent) {
	if !slices.Contains(p.hide, ev.Area) {
		return
	}
	proxy.CancelDefault()
	p.mu.Lock()
	p.vetoed++
	p.mu.Unlock()
	p.log.Debug().Str("area", string(ev.Area)).Int("docks", len(ev.Docks)).Msg("keeping dock bar hidden")
}

func (p *Plugin) record(c Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

// Changes returns the toggles seen so far, oldest first.
func (p *Plugin) Changes() []Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.changes)
}

// Vetoed returns how many times a toolbar was kept hidden.
func (p *Plugin) Vetoed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vetoed
}
