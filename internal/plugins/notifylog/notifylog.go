// Package notifylog is the fallback notifier: it takes every notification
// entity and writes it to the log.
package notifylog

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugin"
)

// ID is the plugin's unique ID.
const ID = "org.leechcore.notifylog"

const keep = 100

// Notice is a logged notification.
type Notice struct {
	Time     time.Time       `json:"time"`
	Header   string          `json:"header"`
	Text     string          `json:"text"`
	Priority entity.Priority `json:"priority"`
}

// Plugin logs notifications.
type Plugin struct {
	log *logging.Logger

	mu     sync.Mutex
	recent []Notice
}

// New creates the plugin.
func New() *Plugin { return &Plugin{log: logging.Nop()} }

func (p *Plugin) ID() string   { return ID }
func (p *Plugin) Name() string { return "Notification Log" }
func (p *Plugin) Info() string { return "Writes notifications to the log" }

func (p *Plugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapNotifier, plugin.CapEntityHandler}
}

func (p *Plugin) Init(_ context.Context, px plugin.Proxy) error {
	p.log = px.Log()
	return px.Entities().RegisterHandler(entity.HandlerFuncs{
		Could: entity.ByMime(entity.MimeNotification, entity.PNormal),
		Do:    p.handle,
	})
}

func (p *Plugin) SecondInit(context.Context) error { return nil }
func (p *Plugin) Release(context.Context) error    { return nil }

func (p *Plugin) handle(_ context.Context, e entity.Entity) error {
	n := Notice{
		Time:     time.Now(),
		Header:   e.StringValue(entity.KeyHeader),
		Text:     e.StringValue(entity.KeyText),
		Priority: e.NotificationPriority(),
	}

	ev := p.log.Info()
	switch n.Priority {
	case entity.PWarning:
		ev = p.log.Warn()
	case entity.PCritical:
		ev = p.log.Error()
	}
	ev.Str("header", n.Header).Str("priority", n.Priority.String()).Msg(n.Text)

	p.mu.Lock()
	p.recent = append(p.recent, n)
	if len(p.recent) > keep {
		p.recent = p.recent[len(p.recent)-keep:]
	}
	p.mu.Unlock()
	return nil
}

// Recent returns the logged notifications, oldest first.
func (p *Plugin) Recent() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notice, len(p.recent))
	copy(out, p.recent)
	return out
}
