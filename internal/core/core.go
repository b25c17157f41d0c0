// Package core wires the hook registry, the entity manager, the plugin
// manager and the shared services handed to plugins, and drives them
// through a single lifecycle.
package core

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/soyeahso/leechcore/internal/dock"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugin"
	"github.com/soyeahso/leechcore/internal/routing"
	"github.com/soyeahso/leechcore/internal/store"
)

// NoticeSender is the header of notifications the core dispatches itself.
const NoticeSender = "leechcore"

// Options configures a Core.
type Options struct {
	Log *logging.Logger

	TiePolicy   routing.TiePolicy
	Chooser     routing.Chooser
	StrictStale bool
	// NoHandlerNotice dispatches a warning notification when nothing
	// handles an entity.
	NoHandlerNotice bool

	// Journal records dispatched entities. The core closes it on Release.
	Journal  routing.Journal
	Settings *store.Settings

	LoopQueue  int
	IDPoolSize int

	HTTPClient     *http.Client
	NetworkTimeout time.Duration
	UserAgent      string
}

// Core owns every registry and shared service.
type Core struct {
	hooks    *hooks.Registry
	entities *routing.Manager
	plugins  *plugin.Manager
	docks    *dock.Manager
	network  *Network
	ids      *IDPool
	settings *store.Settings

	life    *lifecycle
	loop    *loop
	running atomic.Bool
	started time.Time
	log     *logging.Logger
}

// New builds a core in the uninitialized phase.
func New(opts Options) (*Core, error) {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	life, err := newLifecycle(log.Sub("core"))
	if err != nil {
		return nil, fmt.Errorf("building core lifecycle: %w", err)
	}

	settings := opts.Settings
	if settings == nil {
		settings = store.NewSettings(nil)
	}

	c := &Core{
		hooks:    hooks.NewRegistry(log),
		ids:      NewIDPool(opts.IDPoolSize),
		settings: settings,
		life:     life,
		loop:     newLoop(opts.LoopQueue, log),
		log:      log.Sub("core"),
	}
	c.docks = dock.NewManager(c.hooks, log)
	c.network = NewNetwork(opts.HTTPClient, opts.NetworkTimeout, opts.UserAgent, c.hooks, log)
	c.plugins = plugin.NewManager(plugin.Options{
		Hooks:  c.hooks,
		Log:    log,
		Detach: c.detach,
	})

	routeOpts := routing.Options{
		Hooks:       c.hooks,
		TiePolicy:   opts.TiePolicy,
		Chooser:     opts.Chooser,
		Journal:     opts.Journal,
		Live:        c.plugins.Live,
		StrictStale: opts.StrictStale,
		Log:         log,
	}
	if opts.NoHandlerNotice {
		routeOpts.NoHandler = c.noHandlerNotice
	}
	c.entities = routing.NewManager(routeOpts)
	return c, nil
}

// Hooks returns the hook registry.
func (c *Core) Hooks() *hooks.Registry { return c.hooks }

// Entities returns the entity manager.
func (c *Core) Entities() *routing.Manager { return c.entities }

// Plugins returns the plugin manager.
func (c *Core) Plugins() *plugin.Manager { return c.plugins }

// Docks returns the dock toolbar manager.
func (c *Core) Docks() *dock.Manager { return c.docks }

// IDs returns the shared ID pool.
func (c *Core) IDs() *IDPool { return c.ids }

// Phase returns the current lifecycle phase.
func (c *Core) Phase() Phase { return c.life.phase() }

// Uptime is the time since Init completed, or zero.
func (c *Core) Uptime() time.Duration {
	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// Register adds plugins. It is only allowed before Init.
func (c *Core) Register(ps ...plugin.Plugin) error {
	if ph := c.Phase(); ph != PhaseUninitialized {
		return errs.New(errs.CodeLifecycleInvalid, "plugins can only be registered before init",
			errs.Field("phase", string(ph)))
	}
	for _, p := range ps {
		if err := c.plugins.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Init runs both plugin initialisation phases. Plugins failing either phase
// are unloaded and the rest carry on; their errors are logged and returned
// in the plugins' Info.
func (c *Core) Init(ctx context.Context) error {
	if err := c.life.init(); err != nil {
		return err
	}
	c.log.Info().Int("plugins", c.plugins.Count()).Msg("initializing core")

	failures := c.plugins.InitAll(ctx, func(p plugin.Plugin) plugin.Proxy {
		return c.proxyFor(p.ID())
	})
	for _, err := range failures {
		c.log.Warn().Err(err).Msg("plugin dropped during init")
	}

	if err := c.life.ready(); err != nil {
		return err
	}
	c.started = time.Now()
	c.log.Info().
		Int("loaded", len(c.plugins.WithState(plugin.StateLoaded))).
		Int("failed", len(failures)).
		Msg("core running")
	return nil
}

// Run drives the main loop until ctx is done or Release stops it.
func (c *Core) Run(ctx context.Context) error {
	if ph := c.Phase(); ph != PhaseRunning {
		return errs.New(errs.CodeLifecycleInvalid, "core is not running", errs.Field("phase", string(ph)))
	}
	if !c.running.CompareAndSwap(false, true) {
		return errs.New(errs.CodeLifecycleInvalid, "main loop already running")
	}
	c.loop.run(ctx)
	c.running.Store(false)

	select {
	case <-c.loop.stopped():
		return nil
	default:
		return ctx.Err()
	}
}

// Post queues fn onto the main loop.
func (c *Core) Post(fn func(ctx context.Context)) error {
	return c.loop.post(fn)
}

// Dispatch routes e on the main loop and returns the full outcome.
func (c *Core) Dispatch(ctx context.Context, e entity.Entity) (routing.Result, error) {
	var res routing.Result
	err := c.onLoop(ctx, func(lctx context.Context) {
		res = c.entities.HandleEntity(lctx, e)
	})
	return res, err
}

// HandleEntity routes e and reports whether a handler accepted it.
func (c *Core) HandleEntity(ctx context.Context, e entity.Entity) (bool, error) {
	res, err := c.Dispatch(ctx, e)
	return res.Accepted, err
}

// Candidates ranks the handlers able to take e without dispatching it.
func (c *Core) Candidates(ctx context.Context, e entity.Entity) ([]routing.Candidate, error) {
	var out []routing.Candidate
	err := c.onLoop(ctx, func(lctx context.Context) {
		out = c.entities.Candidates(lctx, e)
	})
	return out, err
}

// Unload fires PluginUnloading, removes the plugin's hooks, entity handler
// and docks, and releases it.
func (c *Core) Unload(ctx context.Context, id string) error {
	var err error
	if lerr := c.onLoop(ctx, func(lctx context.Context) {
		err = c.plugins.Unload(lctx, id)
	}); lerr != nil {
		return lerr
	}
	return err
}

// Release unloads every plugin in reverse registration order, closes the
// journal and stops the main loop.
func (c *Core) Release(ctx context.Context) error {
	if err := c.life.release(); err != nil {
		return err
	}
	c.log.Info().Msg("releasing core")

	var releaseErr error
	if err := c.onLoop(ctx, func(lctx context.Context) {
		c.plugins.ReleaseAll(lctx)
	}); err != nil {
		releaseErr = err
		c.log.Error().Err(err).Msg("releasing plugins")
	}
	c.loop.close()

	if err := c.entities.Close(); err != nil && releaseErr == nil {
		releaseErr = errs.Wrap(err, errs.CodeStoreFailure, "closing entity journal")
		c.log.Error().Err(err).Msg("closing entity journal")
	}

	if err := c.life.released(); err != nil {
		return err
	}
	c.log.Info().Msg("core released")
	return releaseErr
}

// onLoop runs fn on the main loop and waits for it. Work already on the
// loop, and work issued while no loop is running, runs on the caller's
// goroutine. When ctx ends or the loop stops before fn starts, fn is
// dropped and the error is returned; once fn has started, onLoop waits for
// it and reports success.
func (c *Core) onLoop(ctx context.Context, fn func(context.Context)) error {
	select {
	case <-c.loop.stopped():
		return errs.New(errs.CodeLoopStopped, "main loop stopped")
	default:
	}
	if c.loop.on(ctx) || !c.running.Load() {
		fn(ctx)
		return nil
	}

	var claimed atomic.Bool
	done := make(chan struct{})
	if err := c.loop.post(func(lctx context.Context) {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		defer close(done)
		fn(lctx)
	}); err != nil {
		return err
	}

	var abort error
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		abort = ctx.Err()
	case <-c.loop.stopped():
		abort = errs.New(errs.CodeLoopStopped, "main loop stopped")
	}
	if claimed.CompareAndSwap(false, true) {
		return abort
	}
	<-done
	return nil
}

func (c *Core) detach(id string) {
	c.entities.Remove(id)
	if n := c.docks.RemoveOwner(id); n > 0 {
		c.log.Debug().Str("plugin", id).Int("docks", n).Msg("removed plugin docks")
	}
}

// noHandlerNotice tells the user nothing took an entity. Notifications
// themselves never trigger a notice.
func (c *Core) noHandlerNotice(ctx context.Context, e entity.Entity) {
	if e.IsNotification() {
		return
	}
	what := e.Mime
	if s, ok := e.PayloadString(); ok && s != "" {
		what = s
	}
	n := entity.MakeNotification(NoticeSender, fmt.Sprintf("No plugin could handle %s", what), entity.PWarning)

	if c.loop.on(ctx) && c.running.Load() {
		go func() {
			if err := c.loop.post(func(lctx context.Context) { c.entities.HandleEntity(lctx, n) }); err != nil {
				c.log.Debug().Err(err).Msg("dropping no-handler notice")
			}
		}()
		return
	}
	c.entities.HandleEntity(ctx, n)
}
