package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
	"github.com/basakesin/mri-defacing-platform/internal/infra/config"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitConfig  = 3
)

// ExitError is an error that carries a specific process exit code.
// RunE returns it to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, config.ErrInvalid):
		return ExitConfig
	case pipeline.IsClientError(err):
		return ExitUsage
	default:
		return ExitFailure
	}
}
