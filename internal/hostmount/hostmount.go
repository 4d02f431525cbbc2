// Package hostmount detects which in-kernel MAC module is active by
// checking for its pseudo-filesystem in the mount table, the way
// nestybox-sysbox-libs/mount's MountedWithFs does for generic mountpoint
// queries. It replaces the original's libsmack smack_enabled() call and
// gives §1's "active enforcement backend" a concrete detection mechanism.
package hostmount

import (
	"bufio"
	"os"
	"strings"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

// Info is one parsed line of /proc/self/mountinfo, trimmed to the fields
// this package needs.
type Info struct {
	Mountpoint string
	Fstype     string
}

// GetMounts parses /proc/self/mountinfo for the current process, mirroring
// nestybox-sysbox-libs/mount.GetMounts.
func GetMounts() ([]Info, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return nil, apperr.Wrap(apperr.IO, "open /proc/self/mountinfo", err)
	}
	defer f.Close()

	var mounts []Info
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// mountinfo fields are separated by " - " into two groups; the
		// second group starts with the filesystem type.
		line := scanner.Text()
		parts := strings.SplitN(line, " - ", 2)
		if len(parts) != 2 {
			continue
		}
		left := strings.Fields(parts[0])
		right := strings.Fields(parts[1])
		if len(left) < 5 || len(right) < 1 {
			continue
		}
		mounts = append(mounts, Info{Mountpoint: left[4], Fstype: right[0]})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Wrap(apperr.IO, "read /proc/self/mountinfo", err)
	}
	return mounts, nil
}

// MountedWithFs reports whether fstype is mounted anywhere in mounts,
// mirroring nestybox-sysbox-libs/mount.MountedWithFs (which matches on a
// specific mountpoint; this package only cares that the filesystem type is
// present at all, since smackfs/selinuxfs are singleton mounts).
func MountedWithFs(mounts []Info, fstype string) bool {
	for _, m := range mounts {
		if m.Fstype == fstype {
			return true
		}
	}
	return false
}

// Backend is the MAC backend detected as active on the host.
type Backend int

const (
	None Backend = iota
	SELinux
	SMACK
)

func (b Backend) String() string {
	switch b {
	case SELinux:
		return "selinux"
	case SMACK:
		return "smack"
	default:
		return "none"
	}
}

// DetectBackend inspects the mount table for selinuxfs / smackfs and
// reports which MAC backend the kernel currently enforces. If both or
// neither are mounted it reports None; security-managerd then runs both
// backends (spec §1: "the active enforcement backend").
func DetectBackend() (Backend, error) {
	mounts, err := GetMounts()
	if err != nil {
		return None, err
	}
	selinux := MountedWithFs(mounts, "selinuxfs")
	smack := MountedWithFs(mounts, "smackfs")
	switch {
	case selinux && !smack:
		return SELinux, nil
	case smack && !selinux:
		return SMACK, nil
	default:
		return None, nil
	}
}

// SmackEnabled reports whether smackfs is mounted, replacing the
// original's libsmack smack_enabled() call (spec §4.6).
func SmackEnabled() (bool, error) {
	mounts, err := GetMounts()
	if err != nil {
		return false, err
	}
	return MountedWithFs(mounts, "smackfs"), nil
}
