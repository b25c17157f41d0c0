package config

import (
	"fmt"
	"time"

	"github.com/soyeahso/leechcore/internal/version"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Bundled plugin names accepted in plugins.enabled.
const (
	PluginNotifyLog = "notifylog"
	PluginFetch     = "fetch"
	PluginIRCNotify = "ircnotify"
	PluginMailWatch = "mailwatch"
	PluginSidebar   = "sidebar"
)

// KnownPlugins lists every bundled plugin name.
var KnownPlugins = []string{PluginNotifyLog, PluginFetch, PluginIRCNotify, PluginMailWatch, PluginSidebar}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Core: CoreConfig{
			TiePolicy:       "ask",
			NoHandlerNotice: true,
			LoopQueue:       256,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
		},
		History: HistoryConfig{
			Store: "sqlite",
			Limit: 1000,
		},
		Network: NetworkConfig{
			Timeout:   30 * time.Second,
			UserAgent: version.UserAgent(),
		},
		Plugins: PluginsConfig{
			Enabled: []string{PluginNotifyLog, PluginFetch, PluginSidebar},
		},
	}
}
