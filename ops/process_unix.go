//go:build !windows

package ops

import (
	"os/exec"
	"syscall"

	"github.com/arfaz/opbus/bus/errs"
)

// setDetached puts the child in its own session so a kill delivered to the
// host process group does not also reach the child.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// exitStatus extracts (gotSignal, exitCode, exitSignal) from a completed
// *exec.Cmd, reporting a terminating signal when the platform's wait status
// indicates one.
func exitStatus(cmd *exec.Cmd, waitErr error) RunStatusReply {
	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return RunStatusReply{ExitSignal: -1, ExitCode: cmd.ProcessState.ExitCode()}
	}
	if ws.Signaled() {
		return RunStatusReply{GotSignal: true, ExitSignal: int(ws.Signal()), ExitCode: -1}
	}
	return RunStatusReply{ExitSignal: -1, ExitCode: ws.ExitStatus()}
}

// deliverSignal sends signo to pid via kill(2).
func deliverSignal(pid, signo int) *errs.BusError {
	if err := syscall.Kill(pid, syscall.Signal(signo)); err != nil {
		return errs.New(errs.IO, err)
	}
	return nil
}
