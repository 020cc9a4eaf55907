package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, v, c, d string) {
	t.Helper()
	ov, oc, od := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = ov, oc, od })
	Version, Commit, Date = v, c, d
}

func TestInfoUnstamped(t *testing.T) {
	assert.Equal(t,
		"helix dev (commit: unknown, built: unknown, "+runtime.GOOS+"/"+runtime.GOARCH+")",
		Info())
}

func TestInfoStamped(t *testing.T) {
	stamp(t, "0.4.0", "9f2c1e0b7d", "2026-10-01")
	info := Info()
	assert.Contains(t, info, "helix 0.4.0")
	assert.Contains(t, info, "commit: 9f2c1e0,")
	assert.Contains(t, info, "built: 2026-10-01")
}

func TestUserAgent(t *testing.T) {
	stamp(t, "0.4.0", "x", "y")
	assert.Equal(t, "helix/0.4.0 ("+runtime.GOOS+"; "+runtime.GOARCH+")", UserAgent())
}

func TestShortKeepsAtMostSeven(t *testing.T) {
	for in, want := range map[string]string{"": "", "abc": "abc", "1234567": "1234567", "12345678": "1234567"} {
		assert.Equal(t, want, short(in), in)
	}
}
