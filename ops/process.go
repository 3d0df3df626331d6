package ops

import (
	"os/exec"
	"sync"

	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/errs"
	"github.com/arfaz/opbus/bus/permission"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/bus/stream"
	"github.com/arfaz/opbus/worker"
)

// StdioMode names how a child's standard stream should be wired.
type StdioMode string

const (
	StdioInherit StdioMode = "inherit"
	StdioPiped   StdioMode = "piped"
	StdioNull    StdioMode = "null"
)

// RunRequest is the run(args, cwd, env, stdin, stdout, stderr) op payload.
// Stdin/Stdout/Stderr are either one of the StdioMode strings or the
// decimal string form of an existing rid to clone into the child.
type RunRequest struct {
	Args   []string          `json:"args"`
	Cwd    string            `json:"cwd"`
	Env    map[string]string `json:"env"`
	Stdin  string            `json:"stdin"`
	Stdout string            `json:"stdout"`
	Stderr string            `json:"stderr"`
}

// RunReply is the run() op's success payload.
type RunReply struct {
	RID       int32 `json:"rid"`
	PID       int   `json:"pid"`
	StdinRID  int32 `json:"stdinRid,omitempty"`
	StdoutRID int32 `json:"stdoutRid,omitempty"`
	StderrRID int32 `json:"stderrRid,omitempty"`
}

// RunStatusReply is the run_status() op's success payload.
type RunStatusReply struct {
	GotSignal  bool `json:"gotSignal"`
	ExitCode   int  `json:"exitCode"`
	ExitSignal int  `json:"exitSignal"`
}

// childResource is the resource-table entry for a spawned child process.
type childResource struct {
	cmd  *exec.Cmd
	once sync.Once
	wait chan struct{}
	err  error
}

func (c *childResource) Close() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}

// awaitExit runs cmd.Wait exactly once and fans the result out to any
// number of run_status callers.
func (c *childResource) awaitExit() {
	c.once.Do(func() {
		c.wait = make(chan struct{})
		go func() {
			c.err = c.cmd.Wait()
			close(c.wait)
		}()
	})
}

// Process exposes the run, run_status, and kill op handlers.
type Process struct {
	Table   *resource.Table
	Policy  *permission.Policy
	Pool    *worker.WorkerPool
}

// Run implements the run() op.
func (p *Process) Run(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	if berr := p.Policy.CheckRun(); berr != nil {
		return dispatch.Result{}, berr
	}

	var rr RunRequest
	if berr := dispatch.DecodeJsonPayload(req.Payload, &rr); berr != nil {
		return dispatch.Result{}, berr
	}
	if len(rr.Args) == 0 {
		return dispatch.Result{}, errs.Newf(errs.Parse, "run: args must be non-empty")
	}

	cmd := exec.Command(rr.Args[0], rr.Args[1:]...)
	cmd.Dir = rr.Cwd
	for k, v := range rr.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	setDetached(cmd)

	reply := RunReply{}
	var stdoutPipe, stderrPipe *stdioPipe
	var stdinPipe *stdioPipe
	var berr *errs.BusError

	if stdinPipe, berr = wireStdin(cmd, rr.Stdin, p.Table); berr != nil {
		return dispatch.Result{}, berr
	}
	if stdoutPipe, berr = wireStdout(cmd, rr.Stdout, p.Table); berr != nil {
		return dispatch.Result{}, berr
	}
	if stderrPipe, berr = wireStderr(cmd, rr.Stderr, p.Table); berr != nil {
		return dispatch.Result{}, berr
	}

	if err := cmd.Start(); err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}

	child := &childResource{cmd: cmd}
	reply.RID = p.Table.Add(stream.TagChild, child)
	reply.PID = cmd.Process.Pid
	if stdinPipe != nil {
		reply.StdinRID = p.Table.Add(stream.TagChildStdin, stream.NewWriteOnly(stdinPipe.w))
	}
	if stdoutPipe != nil {
		reply.StdoutRID = p.Table.Add(stream.TagChildStdout, stream.NewReadOnly(stdoutPipe.r))
	}
	if stderrPipe != nil {
		reply.StderrRID = p.Table.Add(stream.TagChildStderr, stream.NewReadOnly(stderrPipe.r))
	}

	out, err := dispatch.EncodeJsonOK(reply)
	if err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	return dispatch.SyncResult(out), nil
}

// RunStatus implements the run_status() op: it awaits the child's exit on
// the worker pool and reports its (gotSignal, exitCode, exitSignal) triple.
func (p *Process) RunStatus(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	var body struct {
		RID int32 `json:"rid"`
	}
	if berr := dispatch.DecodeJsonPayload(req.Payload, &body); berr != nil {
		return dispatch.Result{}, berr
	}

	child, berr := resource.Get[*childResource](p.Table, body.RID)
	if berr != nil {
		return dispatch.Result{}, berr
	}
	child.awaitExit()

	ch := make(chan dispatch.AsyncReply, 1)
	p.Pool.Submit(func() {
		<-child.wait
		statusReply := exitStatus(child.cmd, child.err)
		out, err := dispatch.EncodeJsonOK(statusReply)
		if err != nil {
			ch <- dispatch.AsyncReply{Err: errs.New(errs.IO, err)}
			return
		}
		ch <- dispatch.AsyncReply{Reply: out}
	})
	return dispatch.AsyncResult(ch), nil
}

// Kill implements the kill(pid, signo) op.
func (p *Process) Kill(req dispatch.Request) (dispatch.Result, *errs.BusError) {
	var body struct {
		PID  int `json:"pid"`
		Sig  int `json:"signo"`
	}
	if berr := dispatch.DecodeJsonPayload(req.Payload, &body); berr != nil {
		return dispatch.Result{}, berr
	}
	if berr := p.Policy.CheckRun(); berr != nil {
		return dispatch.Result{}, berr
	}
	if berr := deliverSignal(body.PID, body.Sig); berr != nil {
		return dispatch.Result{}, berr
	}
	out, err := dispatch.EncodeJsonOK(struct{}{})
	if err != nil {
		return dispatch.Result{}, errs.New(errs.IO, err)
	}
	return dispatch.SyncResult(out), nil
}
