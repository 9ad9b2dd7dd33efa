package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withVersion(t *testing.T, v, commit, date string) {
	t.Helper()
	origV, origC, origD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = origV, origC, origD })
	Version, Commit, Date = v, commit, date
}

func TestIsDev(t *testing.T) {
	withVersion(t, "dev", "none", "unknown")
	assert.True(t, IsDev())

	Version = "0.3.0"
	assert.False(t, IsDev())
}

func TestFull(t *testing.T) {
	withVersion(t, "dev", "none", "unknown")
	assert.Equal(t, "netkit dev (built from source)", Full())

	Version, Commit, Date = "1.4.0", "0123456789abcdef", "2026-01-02"
	assert.Equal(t, "netkit 1.4.0 (0123456, 2026-01-02)", Full())
}

func TestUserAgent(t *testing.T) {
	withVersion(t, "2.0.1", "none", "unknown")
	assert.Equal(t, "netkit/2.0.1 (https://github.com/basecamp/netkit)", UserAgent())
}
