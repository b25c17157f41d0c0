// Package plugin defines the contract between the core and its plugins and
// tracks every loaded plugin's lifecycle.
package plugin

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/soyeahso/leechcore/internal/dock"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
)

// Plugin is the interface every plugin implements.
type Plugin interface {
	// ID returns the plugin's unique ID, e.g. "org.leechcore.fetch".
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Info returns a one-line description.
	Info() string

	// Capabilities lists what the plugin offers to other plugins.
	Capabilities() []Capability

	// Init is the first initialisation phase. Plugins register hooks and
	// entity handlers here and must not rely on other plugins being ready.
	Init(ctx context.Context, proxy Proxy) error

	// SecondInit runs after every plugin passed Init. Cross-plugin lookups
	// through Proxy.PluginsWith belong here.
	SecondInit(ctx context.Context) error

	// Release shuts the plugin down. The core has already removed its hooks
	// and entity handler.
	Release(ctx context.Context) error
}

// Capability names a feature other plugins can look a plugin up by.
type Capability string

const (
	CapEntityHandler Capability = "entity.handler"
	CapDownloader    Capability = "downloader"
	CapNotifier      Capability = "notifier"
	CapDockProvider  Capability = "dock.provider"
	CapHookListener  Capability = "hook.listener"
)

// ValidateCapability checks that c is a non-empty, lowercase, dot-separated
// name.
func ValidateCapability(c Capability) error {
	s := string(c)
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..") {
		return errs.New(errs.CodeCapabilityInvalid, "malformed capability", errs.Field("capability", s))
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '.' && r != '-' && r != '_' {
			return errs.New(errs.CodeCapabilityInvalid, "malformed capability", errs.Field("capability", s))
		}
	}
	return nil
}

// Proxy is the per-plugin view of the core's shared services.
type Proxy interface {
	// ID is the unique ID of the plugin the proxy belongs to.
	ID() string

	// Hooks returns the registration scope owned by this plugin.
	Hooks() hooks.Scope

	// Entities gives access to the entity manager.
	Entities() Entities

	// Network returns the shared HTTP client factory.
	Network() Network

	// Docks returns the dock toolbar manager.
	Docks() *dock.Manager

	// GetID reserves a process-wide unique integer; FreeID returns it.
	GetID() (int, error)
	FreeID(id int) error

	// Settings returns the persistent key/value settings of this plugin.
	Settings() Settings

	// Log returns a logger tagged with the plugin's ID.
	Log() *logging.Logger

	// Post queues fn to run on the core main loop. Goroutines use it to
	// report results back.
	Post(fn func(ctx context.Context)) error

	// PluginsWith returns every loaded plugin offering capability c.
	PluginsWith(c Capability) []Plugin
}

// Entities is the entity manager as seen by a plugin.
type Entities interface {
	// RegisterHandler makes the plugin a candidate for entity dispatch.
	RegisterHandler(h entity.Handler) error

	// HandleEntity dispatches e and reports whether a handler accepted it.
	HandleEntity(ctx context.Context, e entity.Entity) (bool, error)

	// CouldHandle reports whether any handler could take e.
	CouldHandle(ctx context.Context, e entity.Entity) bool
}

// Network builds HTTP requests through the core so that hooks can observe
// and veto them.
type Network interface {
	NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

// Settings is a plugin's persistent key/value store. Values are JSON-encoded.
type Settings interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// HasCapability reports whether p declares c.
func HasCapability(p Plugin, c Capability) bool {
	for _, have := range p.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}
