package defacer

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// Output holds the captured streams of one subprocess.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes a resolved program and captures its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) (Output, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (Output, error) {
	return f(ctx, name, args...)
}

// waitDelay bounds how long Wait blocks on inherited pipes after the process is killed.
const waitDelay = 5 * time.Second

// ExecRunner runs programs with os/exec. A zero Timeout means no deadline beyond ctx.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	tool := filepath.Base(name)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, newExecError(tool, args, -1, out, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, newExecError(tool, args, exitErr.ExitCode(), out, err)
	}
	return out, newExecError(tool, args, -1, out, err)
}
