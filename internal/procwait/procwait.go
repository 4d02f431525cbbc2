// Package procwait waits for an external subprocess using pidfd_open, the
// kernel-level process-descriptor primitive nestybox-sysbox-libs/pidfd
// wraps. The SELinux backend uses it to wait on the policy-compiler
// subprocess (spec §4.5 step 4) instead of a bare os.Process.Wait, which
// races if the pid is reused after the process already exited.
//
// pidfd_open requires Linux 5.3+; on kernels that lack it, Run falls back
// to the standard cmd.Wait.
package procwait

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/arthurguyader/sec-lsm-manager/internal/apperr"
)

const sysPidfdOpen = 434

// pidfd is a file descriptor referring to a process (nestybox-sysbox-libs/
// pidfd.PidFd).
type pidfd int

func openPidfd(pid int) (pidfd, error) {
	fd, _, errno := syscall.Syscall(sysPidfdOpen, uintptr(pid), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return pidfd(fd), nil
}

// Run starts cmd and blocks until it exits, preferring to wait on a pidfd
// (immune to pid reuse) and falling back to cmd.Wait if pidfd_open is
// unavailable on this kernel.
func Run(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.Backend, "start "+cmd.Path, err)
	}

	fd, err := openPidfd(cmd.Process.Pid)
	if err != nil {
		// Kernel predates pidfd_open (or it's otherwise unsupported):
		// fall back to the portable wait.
		if werr := cmd.Wait(); werr != nil {
			return apperr.Wrap(apperr.Backend, "run "+cmd.Path, werr)
		}
		return nil
	}
	defer unix.Close(int(fd))

	pollfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, perr := unix.Poll(pollfd, -1)
		if perr == unix.EINTR {
			continue
		}
		if perr != nil {
			return apperr.Wrap(apperr.Backend, "poll pidfd for "+cmd.Path, perr)
		}
		if n > 0 {
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		return apperr.Wrap(apperr.Backend, "run "+cmd.Path, err)
	}
	return nil
}
