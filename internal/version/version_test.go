package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	Version, Commit = "1.2.3", "abc123"
	t.Cleanup(func() { Version, Commit = "dev", "unknown" })

	info := Info()
	assert.True(t, strings.HasPrefix(info, "currencyconv 1.2.3\n"))
	assert.Contains(t, info, "commit: abc123")
}
