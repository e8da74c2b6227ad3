package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/basakesin/mri-defacing-platform/internal/domain/defacer"
	"github.com/basakesin/mri-defacing-platform/internal/domain/job"
)

var (
	// ErrInvalidInput marks client errors found during validation. No tool runs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMethodUnavailable marks a known method whose tools are not installed.
	ErrMethodUnavailable = errors.New("method unavailable")
	// ErrOutputMissing marks a tool that reported success without writing its output.
	ErrOutputMissing = errors.New("output file was not created")
)

func invalidInput(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidInput)
}

// IsClientError reports whether err should be answered with a 4xx status.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrMethodUnavailable)
}

// Classify maps a run failure to its history class.
func Classify(err error) job.ErrorClass {
	switch {
	case err == nil:
		return job.ClassNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return job.ClassCanceled
	case errors.Is(err, defacer.ErrIntermediateMissing):
		return job.ClassIntermediate
	case errors.Is(err, ErrOutputMissing):
		return job.ClassOutputMissing
	case errors.Is(err, defacer.ErrExecution):
		return job.ClassExecution
	default:
		return job.ClassInternal
	}
}
