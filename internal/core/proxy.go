package core

import (
	"context"

	"github.com/soyeahso/leechcore/internal/dock"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugin"
)

// pluginProxy is the plugin.Proxy handed to one plugin.
type pluginProxy struct {
	c   *Core
	id  string
	log *logging.Logger
}

func (c *Core) proxyFor(id string) *pluginProxy {
	return &pluginProxy{c: c, id: id, log: c.log.Plugin(id)}
}

func (p *pluginProxy) ID() string                { return p.id }
func (p *pluginProxy) Hooks() hooks.Scope        { return p.c.hooks.Scope(p.id) }
func (p *pluginProxy) Entities() plugin.Entities { return pluginEntities{p} }
func (p *pluginProxy) Network() plugin.Network   { return p.c.network.For(p.id) }
func (p *pluginProxy) Docks() *dock.Manager      { return p.c.docks }
func (p *pluginProxy) GetID() (int, error)       { return p.c.ids.Get() }
func (p *pluginProxy) FreeID(id int) error       { return p.c.ids.Free(id) }
func (p *pluginProxy) Settings() plugin.Settings { return p.c.settings.For(p.id) }
func (p *pluginProxy) Log() *logging.Logger      { return p.log }

func (p *pluginProxy) Post(fn func(context.Context)) error {
	return p.c.Post(fn)
}

func (p *pluginProxy) PluginsWith(c plugin.Capability) []plugin.Plugin {
	return p.c.plugins.WithCapability(c)
}

type pluginEntities struct {
	p *pluginProxy
}

func (e pluginEntities) RegisterHandler(h entity.Handler) error {
	return e.p.c.entities.Register(e.p.id, h)
}

func (e pluginEntities) HandleEntity(ctx context.Context, ent entity.Entity) (bool, error) {
	return e.p.c.HandleEntity(ctx, ent)
}

func (e pluginEntities) CouldHandle(ctx context.Context, ent entity.Entity) bool {
	cands, err := e.p.c.Candidates(ctx, ent)
	return err == nil && len(cands) > 0
}
