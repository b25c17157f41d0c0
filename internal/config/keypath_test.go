package config

import (
	"testing"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyPath(t *testing.T) {
	tests := []struct {
		input   string
		want    KeyPath
		wantErr bool
	}{
		{"gateway", KeyPath{"gateway"}, false},
		{"gateway.port", KeyPath{"gateway", "port"}, false},
		{"plugins.fetch.dir", KeyPath{"plugins", "fetch", "dir"}, false},
		{"", nil, true},
		{"gateway..port", nil, true},
		{".gateway", nil, true},
		{"gateway.", nil, true},
		{"agents.list", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKeyPath(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestKeyPath_Get(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{
			"port": 18790,
			"auth": map[string]any{"mode": "token"},
		},
		"core": "flat",
	}

	v, ok := KeyPath{"gateway", "auth", "mode"}.Get(root)
	require.True(t, ok)
	assert.Equal(t, "token", v)

	v, ok = KeyPath{"gateway"}.Get(root)
	require.True(t, ok)
	assert.IsType(t, map[string]any{}, v)

	_, ok = KeyPath{"gateway", "missing"}.Get(root)
	assert.False(t, ok)
	_, ok = KeyPath{"core", "tiePolicy"}.Get(root)
	assert.False(t, ok, "non-map intermediate")
}

func TestKeyPath_Set(t *testing.T) {
	root := map[string]any{"core": "flat", "gateway": map[string]any{"bind": "lan"}}

	KeyPath{"gateway", "port"}.Set(root, 9000)
	KeyPath{"plugins", "fetch", "dir"}.Set(root, "/srv/dl")
	KeyPath{"core", "tiePolicy"}.Set(root, "first")

	assert.Equal(t, map[string]any{"bind": "lan", "port": 9000}, root["gateway"])
	assert.Equal(t, map[string]any{"fetch": map[string]any{"dir": "/srv/dl"}}, root["plugins"])
	assert.Equal(t, map[string]any{"tiePolicy": "first"}, root["core"])
}

func TestKeyPath_Unset(t *testing.T) {
	root := map[string]any{
		"gateway": map[string]any{"port": 1, "bind": "lan"},
		"core":    "flat",
	}

	assert.True(t, KeyPath{"gateway", "port"}.Unset(root))
	assert.Equal(t, map[string]any{"bind": "lan"}, root["gateway"])

	assert.False(t, KeyPath{"gateway", "port"}.Unset(root))
	assert.False(t, KeyPath{"history", "store"}.Unset(root))
	assert.False(t, KeyPath{"core", "x"}.Unset(root))
}

func TestCheckRaw(t *testing.T) {
	assert.NoError(t, CheckRaw(map[string]any{}))
	assert.NoError(t, CheckRaw(map[string]any{"core": map[string]any{"tiePolicy": "broadcast"}}))

	err := CheckRaw(map[string]any{"gateway": map[string]any{"prot": 1}})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))

	err = CheckRaw(map[string]any{"core": map[string]any{"tiePolicy": "random"}})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}
