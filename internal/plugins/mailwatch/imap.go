package mailwatch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/soyeahso/leechcore/internal/config"
	"golang.org/x/oauth2"
)

// imapMailbox reads unseen messages over IMAP.
type imapMailbox struct {
	c *client.Client
}

// IMAPDialer returns a Dialer for cfg. With cfg.OAuth set, it logs in with
// SASL XOAUTH2 and reuses the access token until it expires.
func IMAPDialer(cfg config.MailConfig) Dialer {
	if cfg.OAuth == nil {
		return DialIMAP
	}
	ts := tokenSource(context.Background(), cfg.OAuth)
	return func(ctx context.Context, cfg config.MailConfig) (Mailbox, error) {
		return dialIMAP(ctx, cfg, ts)
	}
}

// DialIMAP connects and logs in with the configured password, then selects
// the configured mailbox read-only.
func DialIMAP(ctx context.Context, cfg config.MailConfig) (Mailbox, error) {
	return dialIMAP(ctx, cfg, nil)
}

func dialIMAP(_ context.Context, cfg config.MailConfig, ts oauth2.TokenSource) (Mailbox, error) {
	var (
		c   *client.Client
		err error
	)
	if cfg.UseTLS == nil || *cfg.UseTLS {
		host, _, _ := net.SplitHostPort(cfg.Server)
		c, err = client.DialTLS(cfg.Server, &tls.Config{ServerName: host})
	} else {
		c, err = client.Dial(cfg.Server)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect: %w", err)
	}

	if err := login(c, cfg, ts); err != nil {
		_ = c.Logout()
		return nil, err
	}
	if _, err := c.Select(cfg.Mailbox, true); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap select %s: %w", cfg.Mailbox, err)
	}
	return &imapMailbox{c: c}, nil
}

func login(c *client.Client, cfg config.MailConfig, ts oauth2.TokenSource) error {
	if ts == nil {
		if err := c.Login(cfg.Username, cfg.Password); err != nil {
			return fmt.Errorf("imap login: %w", err)
		}
		return nil
	}
	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("refreshing oauth token: %w", err)
	}
	if err := c.Authenticate(xoauth2{user: cfg.Username, token: tok.AccessToken}); err != nil {
		return fmt.Errorf("imap xoauth2: %w", err)
	}
	return nil
}

func (m *imapMailbox) Unseen(_ context.Context, afterUID uint32) ([]Message, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if afterUID > 0 {
		criteria.Uid = new(imap.SeqSet)
		criteria.Uid.AddRange(afterUID+1, 0)
	}

	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages)
	}()

	var out []Message
	for msg := range messages {
		if msg.Uid <= afterUID {
			continue
		}
		mm := Message{UID: msg.Uid}
		if env := msg.Envelope; env != nil {
			mm.Subject = env.Subject
			mm.Date = env.Date
			if len(env.From) > 0 {
				mm.From = env.From[0].Address()
			}
		}
		out = append(out, mm)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	return out, nil
}

func (m *imapMailbox) Close() error {
	return m.c.Logout()
}
