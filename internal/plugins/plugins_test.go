package plugins

import (
	"testing"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/plugins/fetch"
	"github.com/soyeahso/leechcore/internal/plugins/ircnotify"
	"github.com/soyeahso/leechcore/internal/plugins/mailwatch"
	"github.com/soyeahso/leechcore/internal/plugins/notifylog"
	"github.com/soyeahso/leechcore/internal/plugins/sidebar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(t *testing.T, cfg config.PluginsConfig) []string {
	t.Helper()
	ps, err := Build(cfg, config.Paths{Downloads: t.TempDir()})
	require.NoError(t, err)
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID()
	}
	return out
}

func TestBuild_Defaults(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, []string{notifylog.ID, fetch.ID, sidebar.ID}, ids(t, cfg.Plugins))
}

func TestBuild_AllPlugins(t *testing.T) {
	cfg := config.PluginsConfig{
		Enabled: []string{"mailwatch", "ircnotify", "notifylog", "notifylog", "sidebar", "fetch"},
		IRC:     &config.IRCConfig{Server: "irc.example.org", Nick: "bot", Channels: []string{"#dl"}},
		Mail:    &config.MailConfig{Server: "imap.example.org:993", Username: "me"},
	}
	assert.Equal(t, []string{mailwatch.ID, ircnotify.ID, notifylog.ID, sidebar.ID, fetch.ID}, ids(t, cfg))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PluginsConfig
	}{
		{"irc without config", config.PluginsConfig{Enabled: []string{"ircnotify"}}},
		{"mail without config", config.PluginsConfig{Enabled: []string{"mailwatch"}}},
		{"unknown", config.PluginsConfig{Enabled: []string{"torrent"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.cfg, config.Paths{})
			assert.Error(t, err)
		})
	}
}
