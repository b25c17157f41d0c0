// Package plugins builds the bundled plugins selected in the config.
package plugins

import (
	"fmt"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/plugin"
	"github.com/soyeahso/leechcore/internal/plugins/fetch"
	"github.com/soyeahso/leechcore/internal/plugins/ircnotify"
	"github.com/soyeahso/leechcore/internal/plugins/mailwatch"
	"github.com/soyeahso/leechcore/internal/plugins/notifylog"
	"github.com/soyeahso/leechcore/internal/plugins/sidebar"
)

// Build creates the enabled plugins in the order they are listed. Plugins
// register in that order, which decides ties between equal handlers.
func Build(cfg config.PluginsConfig, paths config.Paths) ([]plugin.Plugin, error) {
	seen := make(map[string]bool, len(cfg.Enabled))
	out := make([]plugin.Plugin, 0, len(cfg.Enabled))

	for _, name := range cfg.Enabled {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case config.PluginNotifyLog:
			out = append(out, notifylog.New())
		case config.PluginFetch:
			dir := cfg.Fetch.Dir
			if dir == "" {
				dir = paths.Downloads
			}
			out = append(out, fetch.New(fetch.Options{Dir: dir, MaxBytes: cfg.Fetch.MaxBytes}))
		case config.PluginIRCNotify:
			if cfg.IRC == nil {
				return nil, fmt.Errorf("plugin %s is enabled but plugins.irc is not configured", name)
			}
			out = append(out, ircnotify.New(*cfg.IRC))
		case config.PluginMailWatch:
			if cfg.Mail == nil {
				return nil, fmt.Errorf("plugin %s is enabled but plugins.mail is not configured", name)
			}
			out = append(out, mailwatch.New(*cfg.Mail, nil))
		case config.PluginSidebar:
			out = append(out, sidebar.New(cfg.Sidebar.HideAreas))
		default:
			return nil, fmt.Errorf("unknown plugin %q", name)
		}
	}
	return out, nil
}
