package defacer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrExecution marks every failure of an external tool invocation.
	ErrExecution = errors.New("defacing tool failed")
	// ErrIntermediateMissing marks a two-step pipeline whose first step produced no artifact.
	ErrIntermediateMissing = errors.New("intermediate artifact missing")
	// ErrDuplicateMethod is returned when two descriptors share an identifier.
	ErrDuplicateMethod = errors.New("method already registered")
	// ErrInvalidDescriptor is returned for descriptors without an identifier or method.
	ErrInvalidDescriptor = errors.New("invalid method descriptor")
)

// ExecError describes a failed subprocess. ExitCode is -1 when the process never
// started or was interrupted.
type ExecError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Err      error
}

func (e *ExecError) Error() string {
	if e.ExitCode < 0 {
		switch {
		case errors.Is(e.Err, context.DeadlineExceeded):
			return fmt.Sprintf("%s timed out", e.Tool)
		case errors.Is(e.Err, context.Canceled):
			return fmt.Sprintf("%s was canceled", e.Tool)
		case e.Err != nil:
			return fmt.Sprintf("%s could not be started: %v", e.Tool, e.Err)
		default:
			return fmt.Sprintf("%s could not be started", e.Tool)
		}
	}

	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Is reports ErrExecution so callers can classify without unwrapping.
func (e *ExecError) Is(target error) bool { return target == ErrExecution }

func newExecError(tool string, args []string, code int, out Output, cause error) error {
	return errors.Mark(&ExecError{
		Tool:     tool,
		Args:     args,
		ExitCode: code,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Err:      cause,
	}, ErrExecution)
}

// notInstalled reports a tool that could not be resolved on this host.
func notInstalled(tool string, cause error) error {
	return errors.Mark(&ExecError{
		Tool:     tool,
		ExitCode: -1,
		Err:      errors.Wrapf(cause, "%s is not installed or not on PATH", tool),
	}, ErrExecution)
}

func intermediateMissing(path string) error {
	err := errors.Newf("brain extraction output not found: %s", path)
	return errors.Mark(errors.Mark(err, ErrIntermediateMissing), ErrExecution)
}

func lastLine(b []byte) string {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(string(lines[i])); s != "" {
			return s
		}
	}
	return ""
}
