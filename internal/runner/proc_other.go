//go:build windows

package runner

import "os/exec"

func configureProcessGroup(c *exec.Cmd) {}
