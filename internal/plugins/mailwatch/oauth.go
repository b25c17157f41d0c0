package mailwatch

import (
	"context"

	"github.com/soyeahso/leechcore/internal/config"
	"golang.org/x/oauth2"
)

// tokenSource refreshes access tokens from the configured refresh token.
// The returned source caches a token until it expires.
func tokenSource(ctx context.Context, o *config.MailOAuth) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: o.TokenURL},
		Scopes:       o.Scopes,
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: o.RefreshToken})
}

// xoauth2 is the SASL XOAUTH2 mechanism accepted by Gmail and Outlook.
type xoauth2 struct {
	user  string
	token string
}

func (a xoauth2) Start() (string, []byte, error) {
	return "XOAUTH2", []byte("user=" + a.user + "\x01auth=Bearer " + a.token + "\x01\x01"), nil
}

// Next answers the server's error challenge with an empty response so the
// server can finish with NO.
func (a xoauth2) Next([]byte) ([]byte, error) {
	return []byte{}, nil
}
