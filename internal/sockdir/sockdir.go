// Package sockdir ensures the directory holding the daemon's listening
// socket exists and is owned by the right uid/gid, adapted from
// main-security-managerd.c's ensuredir/ensure_directory (-M/--make-socket-dir,
// -O/--own-socket-dir). The original walks the path component by component,
// creating and chown-ing each missing parent by hand; os.MkdirAll already
// does that walk, so only the "stat existing dir, chown if requested" half
// is kept.
package sockdir

import (
	"os"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

// Ensure creates dir (and any missing parents) if create is true, then,
// when own is true, chowns it to uid/gid. uid/gid of -1 leave that half of
// the ownership unchanged, matching the C implementation's sentinel.
func Ensure(dir string, create, own bool, uid, gid int) error {
	st, err := os.Stat(dir)
	switch {
	case err == nil:
		if !st.IsDir() {
			return apperr.New(apperr.PreconditionFailed, dir+" exists and is not a directory")
		}
	case os.IsNotExist(err):
		if !create {
			return apperr.Wrap(apperr.NotFound, "socket directory "+dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Wrap(apperr.IO, "create socket directory "+dir, err)
		}
	default:
		return apperr.Wrap(apperr.IO, "stat socket directory "+dir, err)
	}

	if own {
		if err := os.Chown(dir, uid, gid); err != nil {
			return apperr.Wrap(apperr.IO, "chown socket directory "+dir, err)
		}
	}
	return nil
}
