//go:build unix

package invoke

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child into its own process group, so
// termination reaches the whole tree, not just the immediate child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate signals the child's process group: SIGTERM asks nicely,
// forceful goes straight to SIGKILL. Safe to call after the process has
// already exited.
func terminate(cmd *exec.Cmd, forceful bool) error {
	if cmd.Process == nil {
		return nil
	}
	sig := syscall.SIGTERM
	if forceful {
		sig = syscall.SIGKILL
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
