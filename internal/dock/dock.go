// Package dock manages the per-area toolbars that toggle plugin docks. It is
// the firing site of the dock hooks: plugins may observe docks coming and
// going and veto showing a toolbar.
package dock

import (
	"slices"
	"sync"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
)

// Area is a window edge a toolbar sits on.
type Area string

const (
	AreaLeft   Area = "left"
	AreaRight  Area = "right"
	AreaTop    Area = "top"
	AreaBottom Area = "bottom"
)

// Areas lists every area in a fixed order.
var Areas = []Area{AreaLeft, AreaRight, AreaTop, AreaBottom}

// ParseArea validates an area name.
func ParseArea(s string) (Area, error) {
	a := Area(s)
	if slices.Contains(Areas, a) {
		return a, nil
	}
	return "", errs.New(errs.CodeRequestInvalid, "unknown dock area", errs.Field("area", s))
}

// Dock is a plugin-provided panel with a toggle action on a toolbar.
type Dock struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Owner   string `json:"owner"`
	Visible bool   `json:"visible"`
}

// ActionEvent is passed to AddingDockAction and RemovingDockAction.
type ActionEvent struct {
	Dock Dock
	Area Area
}

// BarEvent is passed to DockBarWillBeShown.
type BarEvent struct {
	Area  Area
	Docks []Dock
}

var (
	// AddingDockAction fires before a dock's toggle is added to a toolbar.
	AddingDockAction = hooks.Define[ActionEvent](hooks.IDAddingDockAction)
	// DockBarWillBeShown fires when a toolbar gets its second toggle.
	// Cancelling it keeps the toolbar hidden.
	DockBarWillBeShown = hooks.Define[BarEvent](hooks.IDDockBarWillBeShown)
	// RemovingDockAction fires before a dock's toggle leaves its toolbar.
	RemovingDockAction = hooks.Define[ActionEvent](hooks.IDRemovingDockAction)
)

type bar struct {
	docks   []*Dock
	visible bool
}

// Bar is a snapshot of one toolbar.
type Bar struct {
	Area    Area   `json:"area"`
	Visible bool   `json:"visible"`
	Docks   []Dock `json:"docks"`
}

// Manager tracks the toolbars of every area.
type Manager struct {
	mu    sync.Mutex
	bars  map[Area]*bar
	hooks *hooks.Registry
	log   *logging.Logger
}

// NewManager creates a manager with an empty, hidden toolbar per area.
func NewManager(reg *hooks.Registry, log *logging.Logger) *Manager {
	m := &Manager{
		bars:  make(map[Area]*bar, len(Areas)),
		hooks: reg,
		log:   log.Sub("dock"),
	}
	for _, a := range Areas {
		m.bars[a] = &bar{}
	}
	return m
}

// Add puts a dock's toggle on the toolbar of area. Adding the same dock ID
// twice to a toolbar logs a warning and does nothing. The toolbar is shown
// once it holds two toggles, unless a DockBarWillBeShown callback cancels.
func (m *Manager) Add(d Dock, area Area) error {
	if d.ID == "" {
		return errs.New(errs.CodeRequestInvalid, "dock has an empty ID", errs.FieldPlugin(d.Owner))
	}
	b, ok := m.bar(area)
	if !ok {
		return errs.New(errs.CodeRequestInvalid, "unknown dock area", errs.Field("area", string(area)))
	}

	m.mu.Lock()
	dup := indexOf(b.docks, d.ID) >= 0
	m.mu.Unlock()
	if dup {
		m.log.Warn().Str("dock", d.ID).Str("area", string(area)).Msg("double-adding dock")
		return nil
	}

	hooks.Fire(m.hooks, AddingDockAction, nil, ActionEvent{Dock: d, Area: area})

	m.mu.Lock()
	added := d
	b.docks = append(b.docks, &added)
	count := len(b.docks)
	m.mu.Unlock()

	if count >= 2 {
		p := hooks.Fire(m.hooks, DockBarWillBeShown, nil, BarEvent{Area: area, Docks: m.snapshot(area)})
		if p.IsCancelled() {
			m.log.Debug().Str("area", string(area)).Msg("showing dock bar cancelled")
		} else {
			m.mu.Lock()
			b.visible = true
			m.mu.Unlock()
		}
	}

	if d.Visible {
		m.Toggle(d.ID, true)
	}
	m.log.Debug().Str("dock", d.ID).Str("area", string(area)).Str("plugin", d.Owner).Msg("dock added")
	return nil
}

// Remove takes a dock's toggle off whatever toolbar holds it. A toolbar left
// with fewer than two toggles is hidden. When the removed dock was visible,
// the last remaining dock of its toolbar takes its place.
func (m *Manager) Remove(id string) bool {
	removed := false
	for _, area := range Areas {
		m.mu.Lock()
		b := m.bars[area]
		i := indexOf(b.docks, id)
		var d Dock
		if i >= 0 {
			d = *b.docks[i]
		}
		m.mu.Unlock()
		if i < 0 {
			continue
		}

		hooks.Fire(m.hooks, RemovingDockAction, nil, ActionEvent{Dock: d, Area: area})

		m.mu.Lock()
		if j := indexOf(b.docks, id); j >= 0 {
			b.docks = slices.Delete(b.docks, j, j+1)
		}
		if len(b.docks) < 2 {
			b.visible = false
		}
		if n := len(b.docks); n > 0 && d.Visible {
			showOnly(b, b.docks[n-1].ID)
		}
		m.mu.Unlock()

		removed = true
		m.log.Debug().Str("dock", id).Str("area", string(area)).Msg("dock removed")
	}
	return removed
}

// Move relocates a dock to another area.
func (m *Manager) Move(id string, area Area) error {
	d, ok := m.Get(id)
	if !ok {
		return errs.New(errs.CodeRequestInvalid, "unknown dock", errs.Field("dock", id))
	}
	if _, ok := m.bar(area); !ok {
		return errs.New(errs.CodeRequestInvalid, "unknown dock area", errs.Field("area", string(area)))
	}
	m.Remove(id)
	return m.Add(d, area)
}

// Toggle shows or hides a dock. Showing a dock hides the other docks of the
// same toolbar.
func (m *Manager) Toggle(id string, visible bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, area := range Areas {
		b := m.bars[area]
		i := indexOf(b.docks, id)
		if i < 0 {
			continue
		}
		if visible {
			showOnly(b, id)
		} else {
			b.docks[i].Visible = false
		}
		return true
	}
	return false
}

// RemoveOwner removes every dock added by owner.
func (m *Manager) RemoveOwner(owner string) int {
	var ids []string
	m.mu.Lock()
	for _, area := range Areas {
		for _, d := range m.bars[area].docks {
			if d.Owner == owner {
				ids = append(ids, d.ID)
			}
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Remove(id)
	}
	return len(ids)
}

// Get returns a dock by ID.
func (m *Manager) Get(id string) (Dock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, area := range Areas {
		if i := indexOf(m.bars[area].docks, id); i >= 0 {
			return *m.bars[area].docks[i], true
		}
	}
	return Dock{}, false
}

// Bars returns a snapshot of every toolbar.
func (m *Manager) Bars() []Bar {
	out := make([]Bar, 0, len(Areas))
	for _, area := range Areas {
		m.mu.Lock()
		visible := m.bars[area].visible
		m.mu.Unlock()
		out = append(out, Bar{Area: area, Visible: visible, Docks: m.snapshot(area)})
	}
	return out
}

func (m *Manager) snapshot(area Area) []Dock {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Dock, len(m.bars[area].docks))
	for i, d := range m.bars[area].docks {
		out[i] = *d
	}
	return out
}

func (m *Manager) bar(area Area) (*bar, bool) {
	b, ok := m.bars[area]
	return b, ok
}

// showOnly marks id visible and hides its siblings. Callers hold m.mu.
func showOnly(b *bar, id string) {
	for _, d := range b.docks {
		d.Visible = d.ID == id
	}
}

func indexOf(docks []*Dock, id string) int {
	return slices.IndexFunc(docks, func(d *Dock) bool { return d.ID == id })
}
