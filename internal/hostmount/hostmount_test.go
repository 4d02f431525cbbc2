package hostmount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMountedWithFs(t *testing.T) {
	mounts := []Info{
		{Mountpoint: "/sys/fs/selinux", Fstype: "selinuxfs"},
		{Mountpoint: "/proc", Fstype: "proc"},
	}
	assert.True(t, MountedWithFs(mounts, "selinuxfs"))
	assert.False(t, MountedWithFs(mounts, "smackfs"))
}

func TestBackendString(t *testing.T) {
	assert.Equal(t, "selinux", SELinux.String())
	assert.Equal(t, "smack", SMACK.String())
	assert.Equal(t, "none", None.String())
}

func TestGetMountsReadsRealMountTable(t *testing.T) {
	mounts, err := GetMounts()
	if err != nil {
		t.Skipf("no /proc/self/mountinfo in this environment: %v", err)
	}
	assert.NotEmpty(t, mounts, "a running Linux process always has at least one mount")
}

func TestDetectBackendDoesNotErrorOnAnyHost(t *testing.T) {
	_, err := DetectBackend()
	assert.NoError(t, err)
}

func TestSmackEnabledDoesNotErrorOnAnyHost(t *testing.T) {
	_, err := SmackEnabled()
	assert.NoError(t, err)
}
