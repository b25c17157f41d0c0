package core

import (
	"cmp"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/version"
)

// RequestEvent is passed to NetworkAccessManagerCreateRequest. Callbacks
// may edit Request in place, replace it through the proxy's return value,
// or cancel the request outright.
type RequestEvent struct {
	Plugin  string
	Request *http.Request
}

// NetworkAccessManagerCreateRequest fires for every request a plugin builds
// through its network proxy.
var NetworkAccessManagerCreateRequest = hooks.Define[*RequestEvent](hooks.IDNetworkAccessManagerCreateRequest)

// Network is the HTTP client factory shared by plugins.
type Network struct {
	client    *http.Client
	userAgent string
	hooks     *hooks.Registry
	log       *logging.Logger
}

// NewNetwork creates the factory. A nil client gets a default one with the
// given timeout.
func NewNetwork(client *http.Client, timeout time.Duration, userAgent string, reg *hooks.Registry, log *logging.Logger) *Network {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Network{
		client:    client,
		userAgent: cmp.Or(userAgent, version.UserAgent()),
		hooks:     reg,
		log:       log.Sub("network"),
	}
}

// For returns the view of the factory used by one plugin.
func (n *Network) For(owner string) *PluginNetwork {
	return &PluginNetwork{net: n, owner: owner}
}

// PluginNetwork builds and sends requests on behalf of a plugin.
type PluginNetwork struct {
	net   *Network
	owner string
}

// NewRequest builds a request and runs it past the
// NetworkAccessManagerCreateRequest hook.
func (p *PluginNetwork) NewRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeRequestInvalid, "bad request", errs.FieldPlugin(p.owner))
	}
	req.Header.Set("User-Agent", p.net.userAgent)

	ev := &RequestEvent{Plugin: p.owner, Request: req}
	proxy := hooks.Fire(p.net.hooks, NetworkAccessManagerCreateRequest, nil, ev)
	if proxy.IsCancelled() {
		p.net.log.Debug().Str("plugin", p.owner).Str("url", url).Msg("request cancelled by hook")
		return nil, errs.New(errs.CodeRequestCancelled, "request cancelled by hook",
			errs.FieldPlugin(p.owner), errs.Field("url", url))
	}
	if v, ok := proxy.ReturnValue(); ok {
		if replaced, ok := v.(*http.Request); ok && replaced != nil {
			return replaced, nil
		}
	}
	return ev.Request, nil
}

// Do sends req with the shared client.
func (p *PluginNetwork) Do(req *http.Request) (*http.Response, error) {
	p.net.log.Trace().Str("plugin", p.owner).Str("method", req.Method).Str("url", req.URL.String()).Msg("sending request")
	return p.net.client.Do(req)
}
