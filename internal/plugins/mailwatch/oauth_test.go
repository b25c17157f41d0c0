package mailwatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSource_RefreshesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	ts := tokenSource(context.Background(), &config.MailOAuth{
		ClientID:     "leechcore",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		RefreshToken: "rt-1",
	})
	for range 2 {
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "at-1", tok.AccessToken)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenSource_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	ts := tokenSource(context.Background(), &config.MailOAuth{ClientID: "leechcore", TokenURL: srv.URL, RefreshToken: "revoked"})
	_, err := ts.Token()
	assert.Error(t, err)
}

func TestXOAuth2(t *testing.T) {
	mech, ir, err := xoauth2{user: "me@example.org", token: "at-1"}.Start()
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=me@example.org\x01auth=Bearer at-1\x01\x01", string(ir))

	resp, err := xoauth2{}.Next([]byte(`{"status":"401"}`))
	require.NoError(t, err)
	assert.Empty(t, resp)
}
