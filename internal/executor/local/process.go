package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// timeoutExitCode mirrors the exit code the unix timeout(1) command uses
// for a killed process.
const timeoutExitCode = 124

// waitDelay bounds how long Wait lingers for output pipes after the
// process group has been killed.
const waitDelay = 2 * time.Second

type processSpec struct {
	Argv      []string
	Dir       string
	Stdin     io.Reader
	Timeout   time.Duration
	MaxOutput int64
}

type processResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
	TimedOut  bool
}

// cappedBuffer captures a stream up to a byte limit. Writes past the limit
// are counted as successful so the child process never sees a pipe error,
// but the overflow is dropped and the truncation is recorded.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }

// runProcess executes exactly one external command under a hard wall-clock
// deadline. The child is started in its own process group and the whole
// group is SIGKILLed on timeout, so children it spawned cannot outlive the
// deadline either. A start failure (missing interpreter, bad permissions)
// is returned as an error; a non-zero exit or a timeout is a result.
func runProcess(ctx context.Context, spec processSpec) (*processResult, error) {
	ctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin

	stdout := &cappedBuffer{max: spec.MaxOutput}
	stderr := &cappedBuffer{max: spec.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid targets the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	waitErr := cmd.Wait()

	res := &processResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = timeoutExitCode
		return res, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// The program ran and exited non-zero. Not our failure.
			return res, nil
		}
		return res, waitErr
	}
	return res, nil
}
