package sidebar

import (
	"context"
	"testing"

	"github.com/soyeahso/leechcore/internal/core"
	"github.com/soyeahso/leechcore/internal/dock"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, hide ...string) (*core.Core, *Plugin) {
	t.Helper()
	c, err := core.New(core.Options{Log: logging.New(nil, "silent")})
	require.NoError(t, err)
	p := New(hide)
	require.NoError(t, c.Register(p))
	require.NoError(t, c.Init(context.Background()))
	t.Cleanup(func() { _ = c.Release(context.Background()) })
	return c, p
}

func visible(c *core.Core, area dock.Area) bool {
	for _, b := range c.Docks().Bars() {
		if b.Area == area {
			return b.Visible
		}
	}
	return false
}

func TestHidesConfiguredAreas(t *testing.T) {
	c, p := setup(t, "left", "nowhere")
	docks := c.Docks()

	require.NoError(t, docks.Add(dock.Dock{ID: "a"}, dock.AreaLeft))
	require.NoError(t, docks.Add(dock.Dock{ID: "b"}, dock.AreaLeft))
	require.NoError(t, docks.Add(dock.Dock{ID: "c"}, dock.AreaRight))
	require.NoError(t, docks.Add(dock.Dock{ID: "d"}, dock.AreaRight))

	assert.False(t, visible(c, dock.AreaLeft))
	assert.True(t, visible(c, dock.AreaRight))
	assert.Equal(t, 1, p.Vetoed())
}

func TestTracksChanges(t *testing.T) {
	c, p := setup(t)
	docks := c.Docks()

	require.NoError(t, docks.Add(dock.Dock{ID: "a"}, dock.AreaTop))
	require.True(t, docks.Remove("a"))

	assert.Equal(t, []Change{
		{Dock: "a", Area: dock.AreaTop},
		{Dock: "a", Area: dock.AreaTop, Removed: true},
	}, p.Changes())
	assert.Zero(t, p.Vetoed())
}

func TestUnloadStopsPolicy(t *testing.T) {
	c, p := setup(t, "bottom")
	require.NoError(t, c.Unload(context.Background(), ID))

	docks := c.Docks()
	require.NoError(t, docks.Add(dock.Dock{ID: "a"}, dock.AreaBottom))
	require.NoError(t, docks.Add(dock.Dock{ID: "b"}, dock.AreaBottom))

	assert.True(t, visible(c, dock.AreaBottom))
	assert.Empty(t, p.Changes())
}
