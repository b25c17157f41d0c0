package config

import (
	"testing"
	"time"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"tie policy", func(c *Config) { c.Core.TiePolicy = "random" }, "core.tiePolicy"},
		{"loop queue", func(c *Config) { c.Core.LoopQueue = -1 }, "core.loopQueue"},
		{"port high", func(c *Config) { c.Gateway.Port = 70000 }, "gateway.port"},
		{"port negative", func(c *Config) { c.Gateway.Port = -1 }, "gateway.port"},
		{"bind", func(c *Config) { c.Gateway.Bind = "tailnet" }, "gateway.bind"},
		{"custom bind host", func(c *Config) { c.Gateway.Bind = "custom" }, "gateway.customBindHost"},
		{"tls without cert", func(c *Config) { c.Gateway.TLS.Enabled = true }, "gateway.tls"},
		{"auth mode", func(c *Config) { c.Gateway.Auth.Mode = "oauth" }, "gateway.auth.mode"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"console style", func(c *Config) { c.Logging.ConsoleStyle = "compact" }, "logging.consoleStyle"},
		{"history store", func(c *Config) { c.History.Store = "postgres" }, "history.store"},
		{"history limit", func(c *Config) { c.History.Limit = -5 }, "history.limit"},
		{"network timeout", func(c *Config) { c.Network.Timeout = -time.Second }, "network.timeout"},
		{"unknown plugin", func(c *Config) { c.Plugins.Enabled = []string{"torrent"} }, "plugins.enabled"},
		{"fetch max bytes", func(c *Config) { c.Plugins.Fetch.MaxBytes = -1 }, "plugins.fetch.maxBytes"},
		{"irc enabled without config", func(c *Config) { c.Plugins.Enabled = []string{PluginIRCNotify} }, "plugins.irc"},
		{"irc server", func(c *Config) { c.Plugins.IRC = &IRCConfig{Nick: "bot"} }, "plugins.irc.server"},
		{"irc nick", func(c *Config) { c.Plugins.IRC = &IRCConfig{Server: "irc.example.org"} }, "plugins.irc.nick"},
		{"irc port", func(c *Config) {
			c.Plugins.IRC = &IRCConfig{Server: "irc.example.org", Nick: "bot", Port: 99999}
		}, "plugins.irc.port"},
		{"irc sasl", func(c *Config) {
			c.Plugins.IRC = &IRCConfig{Server: "irc.example.org", Nick: "bot", SASL: true}
		}, "plugins.irc.sasl"},
		{"mail enabled without config", func(c *Config) { c.Plugins.Enabled = []string{PluginMailWatch} }, "plugins.mail"},
		{"mail server", func(c *Config) { c.Plugins.Mail = &MailConfig{Username: "me"} }, "plugins.mail.server"},
		{"mail username", func(c *Config) { c.Plugins.Mail = &MailConfig{Server: "imap:993"} }, "plugins.mail.username"},
		{"mail oauth incomplete", func(c *Config) {
			c.Plugins.Mail = &MailConfig{Server: "imap:993", Username: "me", OAuth: &MailOAuth{ClientID: "id", TokenURL: "https://oauth2.example.org/token"}}
		}, "plugins.mail.oauth.refreshToken"},
		{"mail oauth with password", func(c *Config) {
			c.Plugins.Mail = &MailConfig{Server: "imap:993", Username: "me", Password: "pw",
				OAuth: &MailOAuth{ClientID: "id", TokenURL: "https://oauth2.example.org/token", RefreshToken: "rt"}}
		}, "plugins.mail.password"},
		{"hide areas", func(c *Config) { c.Plugins.Sidebar.HideAreas = []string{"middle"} }, "plugins.sidebar.hideAreas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.Len(t, issues, 1, "%v", issues)
			assert.Equal(t, tt.path, issues[0].Path)
		})
	}
}

func TestValidate_ValidVariants(t *testing.T) {
	for _, policy := range []string{"first", "ask", "broadcast", ""} {
		cfg := Defaults()
		cfg.Core.TiePolicy = policy
		assert.Empty(t, Validate(&cfg), policy)
	}
	for _, store := range []string{"sqlite", "memory", "none"} {
		cfg := Defaults()
		cfg.History.Store = store
		assert.Empty(t, Validate(&cfg), store)
	}

	cfg := Defaults()
	cfg.Gateway.Bind = "custom"
	cfg.Gateway.CustomBindHost = "10.0.0.2"
	cfg.Plugins.Enabled = KnownPlugins
	cfg.Plugins.IRC = &IRCConfig{Server: "irc.example.org", Nick: "bot", SASL: true, Password: "pw"}
	cfg.Plugins.Mail = &MailConfig{Server: "imap.example.org:993", Username: "me"}
	cfg.Plugins.Sidebar.HideAreas = []string{"left", "bottom"}
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = "loud"
	cfg.Core.TiePolicy = "coin"

	issues := Validate(&cfg)
	assert.Len(t, issues, 3)
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "gateway.port", Message: "bad port"}
	assert.Equal(t, "gateway.port: bad port", issue.String())
}

func TestIssuesError(t *testing.T) {
	assert.NoError(t, IssuesError(nil))

	err := IssuesError([]ValidationIssue{
		{Path: "core.tiePolicy", Message: "bad"},
		{Path: "gateway.port", Message: "worse"},
	})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
	assert.Contains(t, err.Error(), "core.tiePolicy: bad; gateway.port: worse")
}
