// Package sysutil carries small host-inspection helpers adapted from
// nestybox-sysbox-libs/utils (env.go, fs.go): CmdExists looks an external
// tool up on PATH, and the daemon CLI uses ResolveUID/ResolveGID to resolve
// a -u/-g flag that may be a numeric id or a login/group name.
package sysutil

import (
	"os/exec"
	"os/user"
	"strconv"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

// CmdExists reports whether name resolves to an executable on PATH,
// replacing nestybox-sysbox-libs/utils.CmdExists's `sh -c command -v`
// shell-out with a direct exec.LookPath.
func CmdExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ResolveUID accepts either a decimal uid or a login name and returns the
// numeric uid, mirroring the original daemon's handling of -u/--user
// (main-security-managerd.c accepts both forms via getpwnam/strtol).
func ResolveUID(spec string) (int, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		return n, nil
	}
	u, err := user.Lookup(spec)
	if err != nil {
		return 0, apperr.Wrap(apperr.InvalidArgument, "resolve user "+spec, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "parse uid for "+spec, err)
	}
	return uid, nil
}

// ResolveGID accepts either a decimal gid or a group name and returns the
// numeric gid, mirroring the original daemon's handling of -g/--group
// (getgrnam/strtol).
func ResolveGID(spec string) (int, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		return n, nil
	}
	g, err := user.LookupGroup(spec)
	if err != nil {
		return 0, apperr.Wrap(apperr.InvalidArgument, "resolve group "+spec, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "parse gid for "+spec, err)
	}
	return gid, nil
}
