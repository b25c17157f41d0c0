package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })
	Version, Commit, Date = v, commit, date
}

func TestInfo(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "leechcore dev")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)

	stamp(t, "0.3.0", "abc1234567890", "2026-10-01")
	info = Info()
	assert.Contains(t, info, "0.3.0")
	assert.Contains(t, info, "commit: abc1234,")
	assert.Contains(t, info, "2026-10-01")
}

func TestUserAgent(t *testing.T) {
	stamp(t, "1.0.0", "x", "y")
	assert.Equal(t, "leechcore/1.0.0", UserAgent())
}

func TestShort(t *testing.T) {
	for in, want := range map[string]string{"abcdefghij": "abcdefg", "abc": "abc", "": ""} {
		assert.Equal(t, want, short(in), in)
	}
}
