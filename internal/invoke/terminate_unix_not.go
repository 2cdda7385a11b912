//go:build !unix

package invoke

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// terminate kills the child process. Process groups and graceful
// signals are not portable beyond unix, so forceful is ignored here.
func terminate(cmd *exec.Cmd, _ bool) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
