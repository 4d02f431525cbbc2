package capability

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClearAll(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("capset requires CAP_SETPCAP, not available for an unprivileged test run")
	}
	assert.NoError(t, ClearAll())
}
