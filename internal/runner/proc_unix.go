//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the child in its own process group; cancelling
// the command kills the whole group.
func configureProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
