// Package defacer wraps the external defacing tools (pydeface, FSL bet + quickshear,
// deepdefacer, mri_deface, anonymi) behind one Method interface and a read-only
// Registry keyed by method identifier.
//
// Nothing here processes images. Each Method resolves its executables through a
// Toolchain, runs them as subprocesses with captured output, and reports failures as
// errors marked with ErrExecution.
package defacer

import (
	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
	"go.opentelemetry.io/otel"
)

var (
	logger = logging.NewPackageLogger("defacer")
	tracer = otel.Tracer(logging.Repo + "/defacer")
)
