// Package hooks provides typed interception points ("hooks") that plugins can
// register callbacks on. The core fires a hook at a fixed point inside one of
// its operations; every callback runs, in registration order, against a shared
// Proxy, and the firing site consults Proxy.IsCancelled afterwards to decide
// whether to skip its default follow-up.
package hooks

import (
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/logging"
)

// ID enumerates every known hook. New hooks are added here.
type ID int

const (
	IDEntityDispatching ID = iota + 1
	IDAddingDockAction
	IDDockBarWillBeShown
	IDRemovingDockAction
	IDDownloadFinishedNotification
	IDNetworkAccessManagerCreateRequest
	IDPluginLoaded
	IDPluginUnloading
)

var idNames = map[ID]string{
	IDEntityDispatching:                 "entityDispatching",
	IDAddingDockAction:                  "addingDockAction",
	IDDockBarWillBeShown:                "dockBarWillBeShown",
	IDRemovingDockAction:                "removingDockAction",
	IDDownloadFinishedNotification:      "downloadFinishedNotification",
	IDNetworkAccessManagerCreateRequest: "networkAccessManagerCreateRequest",
	IDPluginLoaded:                      "pluginLoaded",
	IDPluginUnloading:                   "pluginUnloading",
}

func (id ID) String() string {
	if n, ok := idNames[id]; ok {
		return n
	}
	return fmt.Sprintf("hook(%d)", int(id))
}

// AllIDs lists every known hook in declaration order.
func AllIDs() []ID {
	ids := make([]ID, 0, len(idNames))
	for id := range idNames {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ParseID resolves a hook by its name.
func ParseID(name string) (ID, bool) {
	for id, n := range idNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// Hook binds a hook ID to the argument type its callbacks receive. Tokens are
// declared once, next to the code that fires them.
type Hook[A any] struct {
	id ID
}

// Define creates the token for a hook.
func Define[A any](id ID) Hook[A] {
	return Hook[A]{id: id}
}

// ID returns the hook's identifier.
func (h Hook[A]) ID() ID { return h.id }

// Callback is the function a plugin registers against a hook.
type Callback[A any] func(p *Proxy, args A)

type entry struct {
	id    ID
	owner string
	name  string
	fn    func(p *Proxy, args any)
}

// Registry stores hook callbacks and fires them.
type Registry struct {
	mu      sync.RWMutex
	entries map[ID][]*entry
	anon    uint64
	log     *logging.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		entries: make(map[ID][]*entry),
		log:     log.Sub("hooks"),
	}
}

// Scope is a registry view bound to one owning plugin. Everything registered
// through it is removed by UnregisterOwner when that plugin unloads.
type Scope struct {
	reg   *Registry
	owner string
}

// Scope returns the registration scope for owner.
func (r *Registry) Scope(owner string) Scope {
	return Scope{reg: r, owner: owner}
}

// Owner returns the plugin ID the scope registers for.
func (s Scope) Owner() string { return s.owner }

// Registry returns the registry behind the scope.
func (s Scope) Registry() *Registry { return s.reg }

// Registration is the handle returned by Register.
type Registration struct {
	reg *Registry
	e   *entry
}

// Name returns the callback name used for logging and duplicate detection.
func (h *Registration) Name() string { return h.e.name }

// Unregister removes the callback. It returns false if it was already gone.
func (h *Registration) Unregister() bool {
	return h.reg.remove(h.e)
}

// Register adds fn to the hook. Callbacks are identified by (owner, hook,
// name); registering the same triple twice logs a warning and returns the
// existing registration unchanged. An empty name never collides.
func Register[A any](s Scope, h Hook[A], name string, fn Callback[A]) (*Registration, error) {
	if s.reg == nil {
		return nil, errs.New(errs.CodeRequestInvalid, "hook scope has no registry")
	}
	if fn == nil {
		return nil, errs.New(errs.CodeRequestInvalid, "nil hook callback",
			errs.FieldPlugin(s.owner), errs.FieldHook(h.id.String()))
	}

	r := s.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		r.anon++
		name = fmt.Sprintf("%s#%d", s.owner, r.anon)
	} else {
		for _, e := range r.entries[h.id] {
			if e.owner == s.owner && e.name == name {
				r.log.Warn().
					Str("hook", h.id.String()).
					Str("plugin", s.owner).
					Str("handler", name).
					Str("code", string(errs.CodeDuplicateRegistration)).
					Msg("hook callback registered twice; ignoring")
				return &Registration{reg: r, e: e}, nil
			}
		}
	}

	e := &entry{
		id:    h.id,
		owner: s.owner,
		name:  name,
		fn: func(p *Proxy, args any) {
			fn(p, args.(A))
		},
	}
	r.entries[h.id] = append(r.entries[h.id], e)

	r.log.Debug().
		Str("hook", h.id.String()).
		Str("plugin", s.owner).
		Str("handler", name).
		Msg("hook registered")

	return &Registration{reg: r, e: e}, nil
}

func (r *Registry) remove(target *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[target.id]
	for i, e := range list {
		if e == target {
			r.entries[target.id] = slices.Delete(slices.Clone(list), i, i+1)
			return true
		}
	}
	return false
}

// UnregisterOwner removes every callback registered by owner and returns how
// many were removed.
func (r *Registry) UnregisterOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, list := range r.entries {
		kept := make([]*entry, 0, len(list))
		for _, e := range list {
			if e.owner == owner {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		r.entries[id] = kept
	}

	if removed > 0 {
		r.log.Debug().Str("plugin", owner).Int("removed", removed).Msg("hooks unregistered")
	}
	return removed
}

// Fire invokes every callback registered on h in registration order. All
// callbacks run regardless of cancellation; a panicking callback is logged and
// skipped. A nil proxy is replaced with a fresh one. The proxy is returned so
// the firing site can inspect it.
func Fire[A any](r *Registry, h Hook[A], p *Proxy, args A) *Proxy {
	if p == nil {
		p = NewProxy()
	}

	// Snapshot so callbacks may (un)register without deadlocking.
	r.mu.RLock()
	list := slices.Clone(r.entries[h.id])
	r.mu.RUnlock()

	for _, e := range list {
		r.invoke(e, p, args)
	}
	return p
}

func (r *Registry) invoke(e *entry, p *Proxy, args any) {
	defer func() {
		if rec := recover(); rec != nil {
			err := errs.Recovered(errs.CodeHookCallbackPanic, rec,
				errs.FieldPlugin(e.owner), errs.FieldHook(e.id.String()))
			r.log.Error().
				Err(err).
				Str("hook", e.id.String()).
				Str("plugin", e.owner).
				Str("handler", e.name).
				Str("code", string(errs.CodeHookCallbackPanic)).
				Msg("hook callback panicked")
		}
	}()
	e.fn(p, args)
}

// Count returns the number of callbacks registered for a hook.
func (r *Registry) Count(id ID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[id])
}

// Hooks returns the hooks that have at least one callback, in ID order.
func (r *Registry) Hooks() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ID
	for _, id := range AllIDs() {
		if len(r.entries[id]) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Info describes one registered callback.
type Info struct {
	Hook  string `json:"hook"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// List returns every registration, grouped by hook in ID order and in
// registration order within a hook.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Info
	for _, id := range AllIDs() {
		for _, e := range r.entries[id] {
			out = append(out, Info{Hook: id.String(), Owner: e.owner, Name: e.name})
		}
	}
	return out
}
