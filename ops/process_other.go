//go:build windows

package ops

import (
	"os/exec"
	"syscall"

	"github.com/arfaz/opbus/bus/errs"
)

func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// exitStatus on Windows has no POSIX signal concept: exitSignal is always
// the sentinel -1 and gotSignal is always false.
func exitStatus(cmd *exec.Cmd, waitErr error) RunStatusReply {
	return RunStatusReply{ExitSignal: -1, ExitCode: cmd.ProcessState.ExitCode()}
}

// deliverSignal is a no-op on Windows, which has no POSIX signal delivery.
func deliverSignal(pid, signo int) *errs.BusError {
	return nil
}
