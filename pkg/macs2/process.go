package macs2

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ExecResult describes a finished child process
type ExecResult struct {
	// ExitCode is the process exit status; 0 indicates success
	ExitCode int

	// Stderr holds the tail of the child's standard error
	Stderr []byte

	Duration time.Duration
}

// Runner executes an external command and waits for it.
//
// Run returns an error only when the process could not be started or was
// stopped by cancellation/timeout. A process that ran and exited non-zero
// is reported through ExecResult.ExitCode.
type Runner interface {
	Run(ctx context.Context, args []string) (*ExecResult, error)
}

// maxStderrTail bounds the stderr kept in ExecResult
const maxStderrTail = 64 << 10

// ExecRunner runs commands as child processes
type ExecRunner struct {
	// Timeout bounds each run. Zero means no limit.
	Timeout time.Duration

	// Stdout and Stderr receive the child's output streams (nil discards).
	Stdout io.Writer
	Stderr io.Writer

	// Dir is the working directory of the child. Empty inherits ours.
	Dir string
}

// Run implements Runner
func (r *ExecRunner) Run(ctx context.Context, args []string) (*ExecResult, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command given")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = r.Dir

	setProcessGroup(cmd)

	tail := &tailBuffer{max: maxStderrTail}
	cmd.Stdout = r.Stdout
	if r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(r.Stderr, tail)
	} else {
		cmd.Stderr = tail
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	waitErr, stopErr := waitOrKill(ctx, done, func() error { return killProcessGroup(cmd) })
	if stopErr != nil {
		return nil, stopErr
	}

	result := &ExecResult{
		Stderr:   tail.Bytes(),
		Duration: time.Since(start),
	}
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("failed to execute command: %w", waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// waitOrKill waits for the result of cmd.Wait on done. If ctx ends first
// the process is killed and stopErr reports the cancellation; a process
// found to have exited at that moment is reported as exited.
func waitOrKill(ctx context.Context, done <-chan error, kill func() error) (waitErr, stopErr error) {
	select {
	case waitErr = <-done:
		return waitErr, nil
	case <-ctx.Done():
	}

	select {
	case waitErr = <-done:
		return waitErr, nil
	default:
	}

	if err := kill(); err != nil {
		return nil, fmt.Errorf("failed to stop command: %v (%w)", err, ctx.Err())
	}
	<-done
	return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.max {
		p = p[len(p)-t.max:]
	}
	if over := t.buf.Len() + len(p) - t.max; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	return append([]byte(nil), t.buf.Bytes()...)
}
