// Package pidfile manages the daemon's PID file, adapted from
// nestybox-sysbox-libs/utils/pidfile.go. The original security-managerd
// has no pidfile lifecycle of its own; every long-running daemon in the
// retrieval pack that isn't socket-activated does, so it is carried here
// as part of the ambient daemon stack (SPEC_FULL.md).
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

// Create writes the current process's pid to pidFile. If the file already
// exists and refers to a live process of the same name, Create fails
// rather than overwrite a running daemon's pidfile.
func Create(process, pidFile string) error {
	pid, err := read(pidFile)
	if err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.IO, "read pidfile "+pidFile, err)
	}
	if err == nil && running(process, pid) {
		return apperr.New(apperr.Conflict, fmt.Sprintf("%s is already running as pid %d", process, pid))
	}

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return apperr.Wrap(apperr.IO, "write pidfile "+pidFile, err)
	}
	return nil
}

// Destroy removes pidFile.
func Destroy(pidFile string) error {
	if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
		return apperr.Wrap(apperr.IO, "remove pidfile "+pidFile, err)
	}
	return nil
}

func read(pidFile string) (int, error) {
	bs, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(bs)))
}

func running(process string, pid int) bool {
	target, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return false
	}
	if filepath.Base(target) != process {
		logrus.WithFields(logrus.Fields{"pid": pid, "expected": process, "found": target}).
			Info("pidfile refers to a different process")
		return false
	}
	return true
}
