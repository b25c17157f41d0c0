// Package ircnotify relays notification entities to IRC channels using the
// girc library.
package ircnotify

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/girc"
	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/plugin"
	"github.com/soyeahso/leechcore/internal/version"
)

// ID is the plugin's unique ID.
const ID = "org.leechcore.ircnotify"

const maxLine = 400

// Plugin relays notifications to IRC while connected.
type Plugin struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex
	connected bool
	lastErr   string
}

// New creates the plugin.
func New(cfg config.IRCConfig) *Plugin {
	return &Plugin{cfg: cfg, log: logging.Nop()}
}

func (p *Plugin) ID() string   { return ID }
func (p *Plugin) Name() string { return "IRC Notifications" }
func (p *Plugin) Info() string { return "Relays notifications to IRC channels" }

func (p *Plugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapNotifier, plugin.CapEntityHandler}
}

func (p *Plugin) Init(_ context.Context, px plugin.Proxy) error {
	p.log = px.Log()

	port := p.cfg.Port
	if port == 0 {
		port = 6667
		if p.cfg.UseTLS {
			port = 6697
		}
	}

	gircCfg := girc.Config{
		Server:  p.cfg.Server,
		Port:    port,
		Nick:    p.cfg.Nick,
		User:    p.cfg.Nick,
		Name:    "leechcore notifier",
		SSL:     p.cfg.UseTLS,
		Version: "leechcore/" + version.Version,
	}
	if p.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{ServerName: p.cfg.Server}
	}
	if p.cfg.SASL && p.cfg.Password != "" {
		gircCfg.SASL = &girc.SASLPlain{User: p.cfg.Nick, Pass: p.cfg.Password}
	} else if p.cfg.Password != "" {
		gircCfg.ServerPass = p.cfg.Password
	}

	p.client = girc.New(gircCfg)
	p.client.Handlers.Add(girc.CONNECTED, p.onConnected)
	p.client.Handlers.Add(girc.DISCONNECTED, p.onDisconnected)

	return px.Entities().RegisterHandler(entity.HandlerFuncs{Could: p.couldHandle, Do: p.handle})
}

// SecondInit starts the connection loop.
func (p *Plugin) SecondInit(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.connectLoop(ctx)
	return nil
}

func (p *Plugin) Release(context.Context) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	if p.client.IsConnected() {
		p.client.Quit("leechcore shutting down")
	}
	p.client.Close()
	<-p.done
	return nil
}

// connectLoop keeps the client connected, backing off between attempts.
func (p *Plugin) connectLoop(ctx context.Context) {
	defer close(p.done)
	backoff := time.Second
	for {
		p.log.Info().
			Str("server", p.cfg.Server).
			Str("nick", p.cfg.Nick).
			Strs("channels", p.cfg.Channels).
			Bool("tls", p.cfg.UseTLS).
			Msg("connecting to IRC")

		err := p.client.Connect()
		p.setConnected(false, err)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.log.Warn().Err(err).Dur("retry", backoff).Msg("IRC connection lost")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < time.Minute {
			backoff *= 2
		}
	}
}

func (p *Plugin) onConnected(c *girc.Client, _ girc.Event) {
	p.log.Info().Str("nick", c.GetNick()).Msg("connected to IRC")
	for _, ch := range p.cfg.Channels {
		c.Cmd.Join(ch)
	}
	p.setConnected(true, nil)
}

func (p *Plugin) onDisconnected(_ *girc.Client, _ girc.Event) {
	p.log.Warn().Msg("disconnected from IRC")
	p.setConnected(false, nil)
}

func (p *Plugin) setConnected(v bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = v
	if err != nil {
		p.lastErr = err.Error()
	}
}

// Connected reports whether the relay is online.
func (p *Plugin) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// couldHandle outbids the log notifier while connected.
func (p *Plugin) couldHandle(e entity.Entity) entity.TestResult {
	if !e.IsNotification() || len(p.cfg.Channels) == 0 || !p.Connected() {
		return entity.Unable()
	}
	return entity.Can(entity.PIdeal)
}

func (p *Plugin) handle(_ context.Context, e entity.Entity) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("irc: not connected")
	}
	lines := splitMessage(format(e), maxLine)
	for _, ch := range p.cfg.Channels {
		for _, line := range lines {
			p.client.Cmd.Message(ch, line)
		}
	}
	p.log.Debug().Int("channels", len(p.cfg.Channels)).Int("lines", len(lines)).Msg("relayed notification")
	return nil
}

// format renders a notification as "[priority] header: text".
func format(e entity.Entity) string {
	header := e.StringValue(entity.KeyHeader)
	text := e.StringValue(entity.KeyText)
	var b strings.Builder
	if pr := e.NotificationPriority(); pr != entity.PInfo {
		b.WriteString("[" + pr.String() + "] ")
	}
	if header != "" {
		b.WriteString(header)
		if text != "" {
			b.WriteString(": ")
		}
	}
	b.WriteString(text)
	return b.String()
}

// splitMessage breaks text into IRC-sized lines. PRIVMSG cannot carry
// newlines, so each input line becomes at least one output line; empty
// lines are dropped.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLen {
			chunks = append(chunks, line[:maxLen])
			line = line[maxLen:]
		}
		if line != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
