// Package job keeps the history of defacing runs: the event published by the
// pipeline, the persisted row, the bus recorder and the retention sweep.
package job

import (
	"time"

	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
)

var logger = logging.NewPackageLogger("job")

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// ErrorClass groups failures for history queries and metrics.
type ErrorClass string

const (
	ClassNone          ErrorClass = ""
	ClassExecution     ErrorClass = "execution"
	ClassIntermediate  ErrorClass = "intermediate_missing"
	ClassOutputMissing ErrorClass = "output_missing"
	ClassCanceled      ErrorClass = "canceled"
	ClassInternal      ErrorClass = "internal"
)

// WorkDirPrefix names every per-request staging directory under the work root.
const WorkDirPrefix = "deface-"

// Event is published on the bus once per run that passed validation.
// It never carries the uploaded filename.
type Event struct {
	JobID       string
	Method      string
	Outcome     Outcome
	ErrorClass  ErrorClass
	Error       string
	InputExt    string
	InputBytes  int64
	OutputBytes int64
	Subject     string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is the wall time of the run.
func (e Event) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Job is a persisted history row.
type Job struct {
	ID          string     `json:"id"`
	Method      string     `json:"method"`
	Outcome     Outcome    `json:"outcome"`
	ErrorClass  ErrorClass `json:"error_class,omitempty"`
	Error       string     `json:"error,omitempty"`
	InputExt    string     `json:"input_ext"`
	InputBytes  int64      `json:"input_bytes"`
	OutputBytes int64      `json:"output_bytes"`
	DurationMS  int64      `json:"duration_ms"`
	Subject     string     `json:"subject,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
}
