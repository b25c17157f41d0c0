package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soyeahso/leechcore/internal/errs"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Core validation
	validPolicies := []string{"first", "ask", "broadcast"}
	if cfg.Core.TiePolicy != "" && !slices.Contains(validPolicies, cfg.Core.TiePolicy) {
		add("core.tiePolicy", "must be one of %v, got %q", validPolicies, cfg.Core.TiePolicy)
	}
	if cfg.Core.LoopQueue < 0 {
		add("core.loopQueue", "must not be negative, got %d", cfg.Core.LoopQueue)
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}

	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// History validation
	validStores := []string{"sqlite", "memory", "none"}
	if cfg.History.Store != "" && !slices.Contains(validStores, cfg.History.Store) {
		add("history.store", "must be one of %v, got %q", validStores, cfg.History.Store)
	}
	if cfg.History.Limit < 0 {
		add("history.limit", "must not be negative, got %d", cfg.History.Limit)
	}

	// Network validation
	if cfg.Network.Timeout < 0 {
		add("network.timeout", "must not be negative, got %s", cfg.Network.Timeout)
	}

	// Plugin validation
	for _, name := range cfg.Plugins.Enabled {
		if !slices.Contains(KnownPlugins, name) {
			add("plugins.enabled", "unknown plugin %q, expected one of %v", name, KnownPlugins)
		}
	}
	if cfg.Plugins.Fetch.MaxBytes < 0 {
		add("plugins.fetch.maxBytes", "must not be negative, got %d", cfg.Plugins.Fetch.MaxBytes)
	}

	if irc := cfg.Plugins.IRC; irc != nil {
		if irc.Server == "" {
			add("plugins.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("plugins.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("plugins.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("plugins.irc.sasl", "SASL requires a password to be set")
		}
	} else if slices.Contains(cfg.Plugins.Enabled, PluginIRCNotify) {
		add("plugins.irc", "required when %s is enabled", PluginIRCNotify)
	}

	if mail := cfg.Plugins.Mail; mail != nil {
		if mail.Server == "" {
			add("plugins.mail.server", "server is required")
		}
		if mail.Username == "" {
			add("plugins.mail.username", "username is required")
		}
		if mail.PollInterval < 0 {
			add("plugins.mail.pollInterval", "must not be negative, got %s", mail.PollInterval)
		}
		if o := mail.OAuth; o != nil {
			if o.ClientID == "" {
				add("plugins.mail.oauth.clientId", "clientId is required")
			}
			if o.TokenURL == "" {
				add("plugins.mail.oauth.tokenUrl", "tokenUrl is required")
			}
			if o.RefreshToken == "" {
				add("plugins.mail.oauth.refreshToken", "refreshToken is required")
			}
			if mail.Password != "" {
				add("plugins.mail.password", "password and oauth are mutually exclusive")
			}
		}
	} else if slices.Contains(cfg.Plugins.Enabled, PluginMailWatch) {
		add("plugins.mail", "required when %s is enabled", PluginMailWatch)
	}

	validAreas := []string{"left", "right", "top", "bottom"}
	for _, a := range cfg.Plugins.Sidebar.HideAreas {
		if !slices.Contains(validAreas, a) {
			add("plugins.sidebar.hideAreas", "must be one of %v, got %q", validAreas, a)
		}
	}

	return issues
}

// IssuesError folds validation issues into a single coded error, or returns
// nil when there are none.
func IssuesError(issues []ValidationIssue) error {
	if len(issues) == 0 {
		return nil
	}
	lines := make([]string, len(issues))
	for i, iss := range issues {
		lines[i] = iss.String()
	}
	return errs.New(errs.CodeConfigInvalid, "invalid config: "+strings.Join(lines, "; "),
		errs.Field("issues", len(issues)))
}
