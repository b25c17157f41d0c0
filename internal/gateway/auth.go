package gateway

import (
	"cmp"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/leechcore/internal/config"
)

// Auth modes.
const (
	AuthToken    = "token"
	AuthPassword = "password"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth is the gateway auth config with environment fallbacks applied.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth fills credentials missing from cfg from LEECHCORE_GATEWAY_TOKEN
// and LEECHCORE_GATEWAY_PASSWORD. Without an explicit mode, a password
// selects password mode.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	a := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    cmp.Or(cfg.Token, os.Getenv("LEECHCORE_GATEWAY_TOKEN")),
		Password: cmp.Or(cfg.Password, os.Getenv("LEECHCORE_GATEWAY_PASSWORD")),
	}
	if a.Mode == "" {
		a.Mode = AuthToken
		if a.Password != "" {
			a.Mode = AuthPassword
		}
	}
	return a
}

// Authorize checks the credentials of a connect request.
func Authorize(server ResolvedAuth, client *ConnectAuth) AuthResult {
	if client == nil {
		return AuthResult{Reason: "no credentials provided"}
	}

	var want, got string
	switch server.Mode {
	case AuthToken:
		want, got = server.Token, client.Token
	case AuthPassword:
		want, got = server.Password, client.Password
	default:
		return AuthResult{Reason: "unknown auth mode: " + server.Mode}
	}

	switch {
	case want == "":
		return AuthResult{Reason: "server " + server.Mode + " not configured"}
	case got == "":
		return AuthResult{Reason: server.Mode + " required"}
	case !safeEqual(got, want):
		return AuthResult{Reason: server.Mode + "_mismatch"}
	}
	return AuthResult{OK: true, Method: server.Mode}
}

// AuthorizeBearer checks the Authorization header of an HTTP request. The
// bearer value stands for whichever secret the mode asks for.
func AuthorizeBearer(server ResolvedAuth, r *http.Request) AuthResult {
	value, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || value == "" {
		return AuthResult{Reason: "bearer token required"}
	}
	return Authorize(server, &ConnectAuth{Token: value, Password: value})
}

// safeEqual compares digests so neither content nor length leaks through
// timing.
func safeEqual(a, b string) bool {
	da, db := sha256.Sum256([]byte(a)), sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}
