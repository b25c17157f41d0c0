// Package mailwatch polls an IMAP mailbox and dispatches a notification
// entity for mail that arrived since the last poll.
package mailwatch

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugin"
)

// ID is the plugin's unique ID.
const ID = "org.leechcore.mailwatch"

const lastUIDKey = "lastUID"

// Message is the envelope of one unseen mail.
type Message struct {
	UID     uint32
	From    string
	Subject string
	Date    time.Time
}

// Mailbox lists unseen messages with a UID above afterUID.
type Mailbox interface {
	Unseen(ctx context.Context, afterUID uint32) ([]Message, error)
	Close() error
}

// Dialer opens a mailbox.
type Dialer func(ctx context.Context, cfg config.MailConfig) (Mailbox, error)

// Plugin is the mailbox watcher.
type Plugin struct {
	cfg  config.MailConfig
	dial Dialer
	px   plugin.Proxy
	log  *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastUID uint32
}

// New creates the plugin. A nil dial uses IMAPDialer(cfg).
func New(cfg config.MailConfig, dial Dialer) *Plugin {
	if dial == nil {
		dial = IMAPDialer(cfg)
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	return &Plugin{cfg: cfg, dial: dial, log: logging.Nop()}
}

func (p *Plugin) ID() string   { return ID }
func (p *Plugin) Name() string { return "Mail Watch" }
func (p *Plugin) Info() string { return "Notifies about new mail in an IMAP mailbox" }

func (p *Plugin) Capabilities() []plugin.Capability { return nil }

func (p *Plugin) Init(ctx context.Context, px plugin.Proxy) error {
	p.px = px
	p.log = px.Log()

	var last uint32
	if _, err := px.Settings().Get(ctx, lastUIDKey, &last); err != nil {
		p.log.Warn().Err(err).Msg("reading last seen UID")
	}
	p.lastUID = last
	return nil
}

// SecondInit starts polling. Notifications need a notifier, so polling
// waits until every plugin passed Init.
func (p *Plugin) SecondInit(context.Context) error {
	if len(p.px.PluginsWith(plugin.CapNotifier)) == 0 {
		p.log.Warn().Msg("no notifier plugin loaded; new mail will only be logged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pollLoop(ctx)
	}()
	return nil
}

func (p *Plugin) Release(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn().Err(err).Str("server", p.cfg.Server).Msg("mail poll failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll checks the mailbox once and posts a notification for new mail.
func (p *Plugin) Poll(ctx context.Context) error {
	mb, err := p.dial(ctx, p.cfg)
	if err != nil {
		return err
	}
	defer mb.Close()

	p.mu.Lock()
	after := p.lastUID
	p.mu.Unlock()

	msgs, err := mb.Unseen(ctx, after)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	slices.SortFunc(msgs, func(a, b Message) int { return cmp.Compare(a.UID, b.UID) })
	newest := msgs[len(msgs)-1].UID

	p.mu.Lock()
	p.lastUID = newest
	p.mu.Unlock()
	if err := p.px.Settings().Set(ctx, lastUIDKey, newest); err != nil {
		p.log.Warn().Err(err).Msg("saving last seen UID")
	}

	p.log.Info().Int("messages", len(msgs)).Uint32("uid", newest).Msg("new mail")
	n := entity.MakeNotification(fmt.Sprintf("%d new message(s) in %s", len(msgs), p.cfg.Mailbox), summary(msgs), entity.PInfo)
	return p.px.Post(func(lctx context.Context) {
		if _, err := p.px.Entities().HandleEntity(lctx, n); err != nil {
			p.log.Warn().Err(err).Msg("dispatching mail notification")
		}
	})
}

// LastUID returns the highest UID notified so far.
func (p *Plugin) LastUID() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUID
}

func summary(msgs []Message) string {
	const show = 5
	var lines []string
	for i := len(msgs) - 1; i >= 0 && len(lines) < show; i-- {
		m := msgs[i]
		lines = append(lines, fmt.Sprintf("%s: %s", m.From, m.Subject))
	}
	if extra := len(msgs) - len(lines); extra > 0 {
		lines = append(lines, fmt.Sprintf("and %d more", extra))
	}
	return strings.Join(lines, "\n")
}
