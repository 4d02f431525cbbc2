// Package capability clears the process's POSIX capability sets after the
// daemon drops privileges (spec §5 "Privilege": "drops to the configured
// uid/gid and clears capability sets before accepting clients"). It is a
// deliberately narrow descendant of nestybox-sysbox-libs/capability, which
// exposes a full Cap enumeration and a generic Capabilities interface
// (Get/Set/Fill/Clear/Apply over four capability sets) for container
// runtimes that need to add and inspect individual capabilities. This
// daemon only ever needs to drop everything once, at startup, so it keeps
// just the capget/capset mechanics — via golang.org/x/sys/unix, which the
// teacher pack already depends on everywhere else — and drops the rest of
// the teacher's introspection API (see DESIGN.md).
package capability

import (
	"golang.org/x/sys/unix"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

// ClearAll clears the effective, permitted and inheritable capability sets
// of the current process, mirroring the original daemon's
// `cap_clear(caps); cap_set_proc(caps);` (main-security-managerd.c).
func ClearAll() error {
	var hdr unix.CapUserHeader
	if err := unix.Capget(&hdr, nil); err != nil {
		return apperr.Wrap(apperr.Backend, "capget", err)
	}
	hdr.Pid = 0

	data := make([]unix.CapUserData, 2)
	if err := unix.Capset(&hdr, &data[0]); err != nil {
		return apperr.Wrap(apperr.Backend, "capset", err)
	}
	return nil
}
