//go:build !unix

package macs2

import (
	"errors"
	"os"
	"os/exec"
)

// setProcessGroup is a no-op where process groups are unavailable
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the child only
func killProcessGroup(cmd *exec.Cmd) error {
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
