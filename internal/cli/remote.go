package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/gateway"
	"github.com/soyeahso/leechcore/internal/version"
)

const dialTimeout = 5 * time.Second

// dialGateway connects to the gateway of a running leechcore using the
// credentials from cfg and the environment.
func dialGateway(ctx context.Context, cfg config.GatewayConfig) (*gateway.Remote, error) {
	auth := gateway.ResolveAuth(cfg.Auth)
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	url := gateway.URL(cfg)
	r, err := gateway.Dial(ctx, url, gateway.ConnectAuth{Token: auth.Token, Password: auth.Password})
	if err != nil {
		return nil, fmt.Errorf("connecting to gateway at %s: %w", url, err)
	}
	log.Debug().Str("url", url).Str("server", r.Hello().Server.Version).Str("client", version.Version).Msg("gateway connected")
	return r, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
