//go:build unix

package macs2

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup starts cmd in its own process group so a kill reaches
// anything MACS2 spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup kills the group led by cmd. A group that has already
// exited is not an error.
func killProcessGroup(cmd *exec.Cmd) error {
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
