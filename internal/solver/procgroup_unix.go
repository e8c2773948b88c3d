//go:build !windows

package solver

import (
	"os/exec"
	"syscall"
)

// killTree puts the solver in its own process group and makes cancellation
// signal the whole group, so launchers such as mpiexec or a wrapper script
// take their ranks down with them.
func killTree(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// The group ID equals the leader's PID because of Setpgid.
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
