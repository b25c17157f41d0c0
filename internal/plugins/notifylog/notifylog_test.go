package notifylog

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/soyeahso/leechcore/internal/core"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, buf *bytes.Buffer) (*core.Core, *Plugin) {
	t.Helper()
	c, err := core.New(core.Options{Log: logging.New(buf, "info")})
	require.NoError(t, err)
	p := New()
	require.NoError(t, c.Register(p))
	require.NoError(t, c.Init(context.Background()))
	t.Cleanup(func() { _ = c.Release(context.Background()) })
	return c, p
}

func TestLogsNotifications(t *testing.T) {
	var buf bytes.Buffer
	c, p := setup(t, &buf)

	ok, err := c.HandleEntity(context.Background(), entity.MakeNotification("Fetch", "disk almost full", entity.PWarning))
	require.NoError(t, err)
	assert.True(t, ok)

	recent := p.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "Fetch", recent[0].Header)
	assert.Equal(t, "disk almost full", recent[0].Text)
	assert.Equal(t, entity.PWarning, recent[0].Priority)
	assert.Contains(t, buf.String(), "disk almost full")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestIgnoresOtherEntities(t *testing.T) {
	c, p := setup(t, &bytes.Buffer{})

	ok, err := c.HandleEntity(context.Background(), entity.MakeEntity("https://example.org", "", 0, "text/uri"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, p.Recent())
}

func TestKeepsLastNotices(t *testing.T) {
	c, p := setup(t, &bytes.Buffer{})
	for i := 0; i < keep+5; i++ {
		_, err := c.HandleEntity(context.Background(), entity.MakeNotification("n", fmt.Sprint(i), entity.PInfo))
		require.NoError(t, err)
	}

	recent := p.Recent()
	require.Len(t, recent, keep)
	assert.Equal(t, "5", recent[0].Text)
	assert.Equal(t, fmt.Sprint(keep+4), recent[keep-1].Text)
}
