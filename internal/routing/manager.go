// Package routing routes entities to the plugin best able to handle them.
//
// Every registered handler is asked how well it could handle an entity; the
// highest grade wins, ties go to the first-registered handler unless the
// entity asks for broadcast delivery or the user is asked to choose.
package routing

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
)

// EntityDispatching fires before an entity is routed. Cancelling it vetoes
// the dispatch. Callbacks receive their own copy of the entity.
var EntityDispatching = hooks.Define[entity.Entity](hooks.IDEntityDispatching)

// Candidate is a handler that answered CouldHandle with a usable grade.
type Candidate struct {
	Owner        string       `json:"owner"`
	Grade        entity.Grade `json:"grade"`
	CancelOthers bool         `json:"cancelOthers,omitempty"`

	handler entity.Handler
}

// Result reports the outcome of HandleEntity.
type Result struct {
	EntityID  string   `json:"entityId"`
	Accepted  bool     `json:"accepted"`
	Handlers  []string `json:"handlers,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// Options configures a Manager.
type Options struct {
	Hooks     *hooks.Registry
	TiePolicy TiePolicy
	Chooser   Chooser
	Journal   Journal

	// Live reports whether a handler's owner is still loaded. Nil treats
	// every owner as live.
	Live func(owner string) bool
	// StrictStale panics when a stale owner is found instead of skipping it.
	StrictStale bool
	// NoHandler is called when no handler can take an entity.
	NoHandler func(ctx context.Context, e entity.Entity)

	Log *logging.Logger
}

type registration struct {
	owner   string
	handler entity.Handler
}

// Manager keeps entity handlers and dispatches entities to them.
type Manager struct {
	mu       sync.RWMutex
	handlers []registration
	subs     []func(entity.Entity, Result)

	hooks     *hooks.Registry
	policy    TiePolicy
	chooser   Chooser
	journal   Journal
	live      func(string) bool
	strict    bool
	noHandler func(context.Context, entity.Entity)
	log       *logging.Logger
}

// NewManager creates an entity manager.
func NewManager(opts Options) *Manager {
	policy := opts.TiePolicy
	if policy == "" {
		policy = TieAsk
	}
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	reg := opts.Hooks
	if reg == nil {
		reg = hooks.NewRegistry(log)
	}
	return &Manager{
		hooks:     reg,
		policy:    policy,
		chooser:   opts.Chooser,
		journal:   opts.Journal,
		live:      opts.Live,
		strict:    opts.StrictStale,
		noHandler: opts.NoHandler,
		log:       log.Sub("routing"),
	}
}

// Register adds a handler owned by a plugin. A plugin owns at most one handler.
func (m *Manager) Register(owner string, h entity.Handler) error {
	if h == nil {
		return errs.New(errs.CodeRequestInvalid, "nil entity handler", errs.FieldPlugin(owner))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.handlers {
		if r.owner == owner {
			m.log.Warn().Str("plugin", owner).Msg("entity handler already registered")
			return errs.New(errs.CodeDuplicateRegistration, "entity handler already registered",
				errs.FieldPlugin(owner))
		}
	}
	m.handlers = append(m.handlers, registration{owner: owner, handler: h})
	m.log.Debug().Str("plugin", owner).Msg("entity handler registered")
	return nil
}

// Remove drops the handler owned by owner.
func (m *Manager) Remove(owner string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.handlers {
		if r.owner == owner {
			m.handlers = slices.Delete(slices.Clone(m.handlers), i, i+1)
			m.log.Debug().Str("plugin", owner).Msg("entity handler removed")
			return true
		}
	}
	return false
}

// Owners lists plugins with a registered handler, in registration order.
func (m *Manager) Owners() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.handlers))
	for i, r := range m.handlers {
		out[i] = r.owner
	}
	return out
}

// Subscribe registers fn to be called after every dispatch.
func (m *Manager) Subscribe(fn func(e entity.Entity, res Result)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Candidates asks every handler whether it could handle e and returns those
// that can, best grade first. Equal grades keep registration order.
func (m *Manager) Candidates(ctx context.Context, e entity.Entity) []Candidate {
	m.mu.RLock()
	regs := slices.Clone(m.handlers)
	m.mu.RUnlock()

	var out []Candidate
	for _, r := range regs {
		if ctx.Err() != nil {
			break
		}
		if !m.alive(r.owner) {
			continue
		}
		res, ok := m.poll(r, e)
		if !ok || !res.CanHandle() {
			continue
		}
		out = append(out, Candidate{
			Owner:        r.owner,
			Grade:        res.Grade,
			CancelOthers: res.CancelOthers,
			handler:      r.handler,
		})
	}

	slices.SortStableFunc(out, func(a, b Candidate) int {
		return int(b.Grade) - int(a.Grade)
	})
	return out
}

// CouldHandle reports whether at least one handler can take e.
func (m *Manager) CouldHandle(ctx context.Context, e entity.Entity) bool {
	return len(m.Candidates(ctx, e)) > 0
}

// HandleEntity routes e to the best handler and reports what happened. It
// never panics on behalf of a handler; failures are logged with the owning
// plugin's ID.
func (m *Manager) HandleEntity(ctx context.Context, e entity.Entity) Result {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	res := Result{EntityID: e.ID}
	log := m.log.With("entity", e.ID).With("mime", e.Mime)

	p := hooks.Fire(m.hooks, EntityDispatching, nil, e.Clone())
	if p.IsCancelled() {
		log.Info().Str("code", string(errs.CodeDispatchVetoed)).Msg("entity dispatch cancelled by hook")
		res.Cancelled = true
		m.finish(ctx, e, res)
		return res
	}

	cands := m.Candidates(ctx, e)
	if len(cands) == 0 {
		log.Warn().Str("code", string(errs.CodeNoHandler)).Msg("no handler found for entity")
		if m.noHandler != nil {
			m.noHandler(ctx, e)
		}
		m.finish(ctx, e, res)
		return res
	}

	tied := bestGroup(cands)
	broadcast := e.Flags.Has(entity.Broadcast) || m.policy == TieBroadcast

	if broadcast && !slices.ContainsFunc(tied, cancelsOthers) {
		for _, c := range tied {
			if m.invoke(ctx, c, e) {
				res.Handlers = append(res.Handlers, c.Owner)
			}
		}
	} else {
		for _, c := range m.order(ctx, e, cands, tied) {
			if m.invoke(ctx, c, e) {
				res.Handlers = []string{c.Owner}
				break
			}
		}
	}
	res.Accepted = len(res.Handlers) > 0

	log.Debug().
		Bool("accepted", res.Accepted).
		Strs("handlers", res.Handlers).
		Int("candidates", len(cands)).
		Msg("entity dispatched")

	m.finish(ctx, e, res)
	return res
}

// History returns the most recent journal records, newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]Record, error) {
	if m.journal == nil {
		return nil, nil
	}
	return m.journal.Recent(ctx, limit)
}

// Close releases the journal.
func (m *Manager) Close() error {
	if m.journal == nil {
		return nil
	}
	return m.journal.Close()
}

// order returns the single-dispatch attempt order: the selected candidate
// first, then the remaining candidates by rank.
func (m *Manager) order(ctx context.Context, e entity.Entity, cands, tied []Candidate) []Candidate {
	sel := m.selectTied(ctx, e, tied)
	out := make([]Candidate, 0, len(cands))
	out = append(out, tied[sel])
	for i, c := range cands {
		if i != sel {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) selectTied(ctx context.Context, e entity.Entity, tied []Candidate) int {
	if i := slices.IndexFunc(tied, cancelsOthers); i >= 0 {
		return i
	}
	if len(tied) < 2 || m.policy != TieAsk || m.chooser == nil || !e.Flags.Has(entity.FromUserInitiated) {
		return 0
	}

	idx, err := m.chooser.Choose(ctx, e.Clone(), slices.Clone(tied))
	switch {
	case err != nil:
		m.log.Warn().Err(err).Str("entity", e.ID).Msg("chooser failed; using first handler")
		return 0
	case idx < 0 || idx >= len(tied):
		m.log.Debug().Str("entity", e.ID).Msg("chooser declined; using first handler")
		return 0
	default:
		return idx
	}
}

func (m *Manager) poll(r registration, e entity.Entity) (res entity.TestResult, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			err := errs.Recovered(errs.CodeHandlerPanic, rec, errs.FieldPlugin(r.owner))
			m.log.Error().Err(err).Str("plugin", r.owner).Msg("CouldHandle panicked")
			res, ok = entity.Unable(), false
		}
	}()
	return r.handler.CouldHandle(e.Clone()), true
}

func (m *Manager) invoke(ctx context.Context, c Candidate, e entity.Entity) (ok bool) {
	if !m.alive(c.Owner) {
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := errs.Recovered(errs.CodeHandlerPanic, rec, errs.FieldPlugin(c.Owner))
			m.log.Error().Err(err).Str("plugin", c.Owner).Str("entity", e.ID).Msg("entity handler panicked")
			ok = false
		}
	}()

	if err := c.handler.Handle(ctx, e.Clone()); err != nil {
		err = errs.Wrap(err, errs.CodeHandlerFailure, "entity handler failed", errs.FieldPlugin(c.Owner))
		m.log.Error().Err(err).Str("plugin", c.Owner).Str("entity", e.ID).Msg("entity handler failed")
		return false
	}
	return true
}

// alive guards against calling into an unloaded plugin.
func (m *Manager) alive(owner string) bool {
	if m.live == nil || m.live(owner) {
		return true
	}
	err := errs.New(errs.CodeStaleReference, "entity handler owner is not loaded", errs.FieldPlugin(owner))
	if m.strict {
		panic(err)
	}
	m.log.Error().Err(err).Str("plugin", owner).Msg("skipping stale entity handler")
	return false
}

func (m *Manager) finish(ctx context.Context, e entity.Entity, res Result) {
	if m.journal != nil && !e.Flags.Has(entity.DoNotSaveInHistory) {
		rec := Record{
			EntityID:  e.ID,
			Time:      time.Now().UTC(),
			Entity:    e,
			Accepted:  res.Accepted,
			Handlers:  res.Handlers,
			Cancelled: res.Cancelled,
		}
		if err := m.journal.Append(ctx, rec); err != nil {
			m.log.Error().Err(err).Str("entity", e.ID).Msg("failed to record entity")
		}
	}

	m.mu.RLock()
	subs := slices.Clone(m.subs)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(e, res)
	}
}

func bestGroup(cands []Candidate) []Candidate {
	n := 1
	for n < len(cands) && cands[n].Grade == cands[0].Grade {
		n++
	}
	return cands[:n]
}

func cancelsOthers(c Candidate) bool { return c.CancelOthers }
