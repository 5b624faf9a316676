//go:build unix

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup runs the command in its own process group, so a cancellation kills
// the whole command tree and not only the shell.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
