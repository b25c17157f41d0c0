package cli

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/soyeahso/leechcore/internal/chooser"
	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/core"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/gateway"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugins"
	"github.com/soyeahso/leechcore/internal/routing"
	"github.com/soyeahso/leechcore/internal/store"
)

// historyStore is a journal the gateway can also list and search.
type historyStore interface {
	routing.Journal
	gateway.History
}

// app is a fully wired core plus its optional gateway.
type app struct {
	core *core.Core
	srv  *gateway.Server
	log  *logging.Logger
}

// appOptions tunes newApp. A nil ChooserIn disables the interactive chooser.
type appOptions struct {
	ChooserIn  io.Reader
	ChooserOut io.Writer
	HTTPClient *http.Client
}

// newApp builds the core from cfg, registers the enabled plugins and, when
// the gateway is enabled, the gateway server. Nothing is started.
func newApp(cfg config.Config, paths config.Paths, log *logging.Logger, opts appOptions) (*app, error) {
	if err := config.IssuesError(config.Validate(&cfg)); err != nil {
		return nil, err
	}
	policy, err := routing.ParseTiePolicy(cfg.Core.TiePolicy)
	if err != nil {
		return nil, err
	}

	history, settings, err := openHistory(cfg.History, paths, log)
	if err != nil {
		return nil, err
	}

	ps, err := plugins.Build(cfg.Plugins, paths)
	if err != nil {
		closeHistory(history)
		return nil, err
	}

	a := &app{log: log}
	coreOpts := core.Options{
		Log:             log,
		TiePolicy:       policy,
		StrictStale:     cfg.Core.StrictStale,
		NoHandlerNotice: cfg.Core.NoHandlerNotice,
		Settings:        settings,
		LoopQueue:       cfg.Core.LoopQueue,
		HTTPClient:      opts.HTTPClient,
		NetworkTimeout:  cfg.Network.Timeout,
		UserAgent:       cfg.Network.UserAgent,
	}
	if history != nil {
		coreOpts.Journal = history
	}
	if opts.ChooserIn != nil && policy == routing.TieAsk {
		coreOpts.Chooser = chooser.New(opts.ChooserIn, opts.ChooserOut, a.pluginName)
	}

	c, err := core.New(coreOpts)
	if err != nil {
		closeHistory(history)
		return nil, err
	}
	a.core = c
	if err := c.Register(ps...); err != nil {
		closeHistory(history)
		return nil, err
	}

	if cfg.Gateway.Enabled {
		var gwOpts []gateway.ServerOption
		if history != nil {
			gwOpts = append(gwOpts, gateway.WithHistory(history))
		}
		a.srv = gateway.New(cfg.Gateway, c, log, gwOpts...)
	}
	return a, nil
}

// run initialises the plugins, serves the gateway if configured and drives
// the main loop until ctx is done. The core is always released.
func (a *app) run(ctx context.Context) error {
	if err := a.core.Init(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gwErr := make(chan error, 1)
	if a.srv != nil {
		go func() {
			err := a.srv.Start(ctx)
			if err != nil {
				a.log.Error().Err(err).Msg("gateway stopped")
			}
			gwErr <- err
			cancel()
		}()
	} else {
		gwErr <- nil
	}

	runErr := a.core.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// The loop has stopped, so Release runs its work inline.
	if err := a.core.Release(context.Background()); err != nil {
		a.log.Error().Err(err).Msg("releasing core")
	}
	cancel()
	if err := <-gwErr; err != nil {
		return err
	}
	return runErr
}

func (a *app) pluginName(id string) string {
	if a.core == nil {
		return id
	}
	if p, ok := a.core.Plugins().Get(id); ok {
		return p.Name()
	}
	return id
}

// openHistory picks the journal named by cfg. The SQLite store also backs
// plugin settings; the other stores keep settings in memory.
func openHistory(cfg config.HistoryConfig, paths config.Paths, log *logging.Logger) (historyStore, *store.Settings, error) {
	switch cfg.Store {
	case "none":
		return nil, store.NewSettings(nil), nil
	case "memory":
		return store.NewMemoryJournal(cfg.Limit), store.NewSettings(nil), nil
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = paths.History
		}
		db, err := store.Open(path, log)
		if err != nil {
			return nil, nil, errs.Wrap(err, errs.CodeStoreFailure, "opening history database", errs.Field("path", path))
		}
		log.Info().Str("path", path).Msg("using SQLite entity history")
		return store.NewJournal(db, cfg.Limit), store.NewSettings(db), nil
	default:
		return nil, nil, errs.New(errs.CodeConfigInvalid, "unknown history store", errs.Field("store", cfg.Store))
	}
}

func closeHistory(h historyStore) {
	if h != nil {
		_ = h.Close()
	}
}
