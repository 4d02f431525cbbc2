package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSelinuxID(t *testing.T) {
	assert.Equal(t, "agl_service_can_low_level", DeriveSelinuxID("agl-service-can-low-level"))
	assert.Equal(t, "noop", DeriveSelinuxID("noop"))
	assert.Equal(t, "", DeriveSelinuxID(""))
}

func TestDeriveLabel(t *testing.T) {
	assert.Equal(t, "App:myapp", DeriveLabel("myapp", ""))
	assert.Equal(t, "App:myapp:lib", DeriveLabel("myapp", "lib"))
}

func TestExecLabelStripInvertsDeriveLabel(t *testing.T) {
	base := DeriveLabel("myapp", "")
	exec := DeriveLabel("myapp", "exec")
	assert.Equal(t, base, ExecLabelStrip(exec, "exec"))
}

func TestExecLabelStripNoSuffixMatch(t *testing.T) {
	label := DeriveLabel("myapp", "lib")
	assert.Equal(t, label, ExecLabelStrip(label, "exec"))
}

func TestPublicLabelConstant(t *testing.T) {
	assert.Equal(t, "public_app", PublicLabel)
}
