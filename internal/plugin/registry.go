package plugin

import (
	"context"
	"sync"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
)

// Loaded fires after a plugin passed both initialisation phases.
var Loaded = hooks.Define[Info](hooks.IDPluginLoaded)

// Unloading fires right before a plugin's registrations are removed.
var Unloading = hooks.Define[Info](hooks.IDPluginUnloading)

// State is a plugin's position in its lifecycle.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialized State = "initialized"
	StateLoaded      State = "loaded"
	StateFailed      State = "failed"
	StateUnloaded    State = "unloaded"
)

// Info holds summary data about a plugin.
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	State        State        `json:"state"`
	Order        int          `json:"order"`
	Error        string       `json:"error,omitempty"`
}

type entry struct {
	p     Plugin
	state State
	order int
	err   error
}

// Options configures a Manager.
type Options struct {
	Hooks *hooks.Registry
	Log   *logging.Logger
	// Detach removes what a plugin registered outside the hook registry,
	// such as its entity handler. It is called on unload.
	Detach func(id string)
}

// Manager keeps plugins in load order and drives their lifecycle.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]*entry
	order   []string // insertion order for deterministic lifecycle
	hooks   *hooks.Registry
	detach  func(string)
	log     *logging.Logger
}

// NewManager creates an empty plugin manager.
func NewManager(opts Options) *Manager {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	reg := opts.Hooks
	if reg == nil {
		reg = hooks.NewRegistry(log)
	}
	return &Manager{
		plugins: make(map[string]*entry),
		hooks:   reg,
		detach:  opts.Detach,
		log:     log.Sub("plugins"),
	}
}

// Register adds a plugin without initialising it.
func (m *Manager) Register(p Plugin) error {
	id := p.ID()
	if id == "" {
		return errs.New(errs.CodeRequestInvalid, "plugin has an empty ID", errs.Field("name", p.Name()))
	}
	for _, c := range p.Capabilities() {
		if err := ValidateCapability(c); err != nil {
			return errs.Wrap(err, errs.CodeCapabilityInvalid, "invalid plugin capability", errs.FieldPlugin(id))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[id]; exists {
		return errs.New(errs.CodeDuplicateRegistration, "plugin already registered", errs.FieldPlugin(id))
	}

	m.plugins[id] = &entry{p: p, state: StateRegistered, order: len(m.order)}
	m.order = append(m.order, id)

	m.log.Info().
		Str("plugin", id).
		Str("name", p.Name()).
		Msg("plugin registered")
	return nil
}

// InitAll runs Init on every registered plugin in registration order, then
// SecondInit on every plugin that survived. A plugin failing either phase is
// unloaded and the rest carry on. The returned errors describe the failures.
func (m *Manager) InitAll(ctx context.Context, proxyFor func(Plugin) Proxy) []error {
	var failures []error

	for _, p := range m.WithState(StateRegistered) {
		m.log.Info().Str("plugin", p.ID()).Msg("initializing plugin")
		proxy := proxyFor(p)
		if err := guard(func() error { return p.Init(ctx, proxy) }); err != nil {
			failures = append(failures, m.fail(ctx, p, "init", err))
			continue
		}
		m.setState(p.ID(), StateInitialized, nil)
	}

	for _, p := range m.WithState(StateInitialized) {
		if err := guard(func() error { return p.SecondInit(ctx) }); err != nil {
			failures = append(failures, m.fail(ctx, p, "second init", err))
			continue
		}
		m.setState(p.ID(), StateLoaded, nil)
	}

	for _, p := range m.WithState(StateLoaded) {
		hooks.Fire(m.hooks, Loaded, nil, m.info(p.ID()))
	}
	return failures
}

// guard turns a panic in plugin code into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errs.Recovered(errs.CodePluginInitFailure, rec)
		}
	}()
	return fn()
}

func (m *Manager) fail(ctx context.Context, p Plugin, phase string, cause error) error {
	err := errs.Wrap(cause, errs.CodePluginInitFailure, "plugin "+phase+" failed",
		errs.FieldPlugin(p.ID()), errs.Field("phase", phase))
	m.log.Error().Err(err).Str("plugin", p.ID()).Str("phase", phase).Msg("plugin failed to initialize; unloading")

	m.setState(p.ID(), StateFailed, err)
	m.teardown(ctx, p)
	return err
}

// Unload fires Unloading, removes the plugin's hooks and entity handler, and
// releases it.
func (m *Manager) Unload(ctx context.Context, id string) error {
	m.mu.RLock()
	e, ok := m.plugins[id]
	m.mu.RUnlock()
	if !ok {
		return errs.New(errs.CodePluginNotFound, "plugin not found", errs.FieldPlugin(id))
	}
	if !m.Live(id) {
		return nil
	}

	hooks.Fire(m.hooks, Unloading, nil, m.info(id))
	m.setState(id, StateUnloaded, nil)
	m.teardown(ctx, e.p)
	m.log.Info().Str("plugin", id).Msg("plugin unloaded")
	return nil
}

// ReleaseAll unloads every live plugin in reverse registration order.
func (m *Manager) ReleaseAll(ctx context.Context) {
	m.mu.RLock()
	order := make([]string, len(m.order))
	copy(order, m.order)
	m.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if !m.Live(id) {
			continue
		}
		if err := m.Unload(ctx, id); err != nil {
			m.log.Error().Err(err).Str("plugin", id).Msg("plugin unload error")
		}
	}
}

func (m *Manager) teardown(ctx context.Context, p Plugin) {
	id := p.ID()
	m.hooks.UnregisterOwner(id)
	if m.detach != nil {
		m.detach(id)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := errs.Recovered(errs.CodePluginInitFailure, rec, errs.FieldPlugin(id))
			m.log.Error().Err(err).Str("plugin", id).Msg("plugin release panicked")
		}
	}()
	m.log.Info().Str("plugin", id).Msg("releasing plugin")
	if err := p.Release(ctx); err != nil {
		m.log.Error().Err(err).Str("plugin", id).Msg("plugin release error")
	}
}

// Live reports whether a plugin is registered and neither failed nor
// unloaded.
func (m *Manager) Live(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.plugins[id]
	return ok && e.state != StateFailed && e.state != StateUnloaded
}

// Get returns a live plugin by ID.
func (m *Manager) Get(id string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.plugins[id]
	if !ok || e.state == StateFailed || e.state == StateUnloaded {
		return nil, false
	}
	return e.p, true
}

// WithCapability returns live plugins declaring c, in registration order.
func (m *Manager) WithCapability(c Capability) []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Plugin
	for _, id := range m.order {
		e := m.plugins[id]
		if e.state == StateFailed || e.state == StateUnloaded {
			continue
		}
		if HasCapability(e.p, c) {
			out = append(out, e.p)
		}
	}
	return out
}

// List returns all registered plugin IDs in registration order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// State returns a plugin's lifecycle state.
func (m *Manager) State(id string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.plugins[id]
	if !ok {
		return "", false
	}
	return e.state, true
}

// Infos returns summary information about all registered plugins.
func (m *Manager) Infos() []Info {
	m.mu.RLock()
	order := make([]string, len(m.order))
	copy(order, m.order)
	m.mu.RUnlock()

	infos := make([]Info, 0, len(order))
	for _, id := range order {
		infos = append(infos, m.info(id))
	}
	return infos
}

func (m *Manager) info(id string) Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e := m.plugins[id]
	info := Info{
		ID:           e.p.ID(),
		Name:         e.p.Name(),
		Description:  e.p.Info(),
		Capabilities: e.p.Capabilities(),
		State:        e.state,
		Order:        e.order,
	}
	if e.err != nil {
		info.Error = e.err.Error()
	}
	return info
}

// WithState returns the plugins currently in state s, in registration order.
func (m *Manager) WithState(s State) []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Plugin
	for _, id := range m.order {
		if e := m.plugins[id]; e.state == s {
			out = append(out, e.p)
		}
	}
	return out
}

func (m *Manager) setState(id string, s State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.plugins[id]; ok {
		e.state = s
		e.err = err
	}
}
