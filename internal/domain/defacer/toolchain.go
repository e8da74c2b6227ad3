package defacer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Executable names used by the standard methods.
const (
	ToolPyDeface    = "pydeface"
	ToolBET         = "bet"
	ToolQuickshear  = "quickshear"
	ToolDeepDefacer = "deepdefacer"
	ToolMRIDeface   = "mri_deface"
	ToolAnonymi     = "anonymi"

	DefaultPython = "python3"
)

// LookupFunc resolves an executable name to a runnable path.
type LookupFunc func(name string) (string, error)

// ToolchainConfig carries host-specific tool locations.
type ToolchainConfig struct {
	// Executables maps a tool name to an explicit path.
	Executables map[string]string
	// SearchPath lists extra directories (e.g. $FSLDIR/bin) tried before $PATH.
	SearchPath []string
	// Python is the interpreter used for library-mode methods.
	Python  string
	Timeout time.Duration
}

// Toolchain resolves and runs external programs on behalf of methods.
type Toolchain struct {
	Runner Runner
	Lookup LookupFunc
	Python string
}

// NewToolchain returns a Toolchain backed by os/exec.
func NewToolchain(cfg ToolchainConfig) *Toolchain {
	python := cfg.Python
	if python == "" {
		python = DefaultPython
	}
	return &Toolchain{
		Runner: ExecRunner{Timeout: cfg.Timeout},
		Lookup: NewLookup(cfg.Executables, cfg.SearchPath),
		Python: python,
	}
}

// NewLookup resolves a name through overrides, then searchPath, then $PATH.
func NewLookup(overrides map[string]string, searchPath []string) LookupFunc {
	return func(name string) (string, error) {
		if p, ok := overrides[name]; ok && p != "" {
			return exec.LookPath(p)
		}
		for _, dir := range searchPath {
			if dir == "" {
				continue
			}
			if p, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
				return p, nil
			}
		}
		return exec.LookPath(name)
	}
}

func (tc *Toolchain) lookup(name string) (string, error) {
	if tc.Lookup == nil {
		return exec.LookPath(name)
	}
	return tc.Lookup(name)
}

func (tc *Toolchain) runner() Runner {
	if tc.Runner == nil {
		return ExecRunner{}
	}
	return tc.Runner
}

func (tc *Toolchain) python() string {
	if tc.Python == "" {
		return DefaultPython
	}
	return tc.Python
}

// Exec resolves tool and runs it with args. Failures are marked with ErrExecution and
// logged with the captured streams.
func (tc *Toolchain) Exec(ctx context.Context, tool string, args ...string) (Output, error) {
	ctx, span := tracer.Start(ctx, "deface.tool", trace.WithAttributes(attribute.String("tool", tool)))
	defer span.End()

	path, err := tc.lookup(tool)
	if err != nil {
		err = notInstalled(tool, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ContextKV(ctx, xlog.ERROR, "tool", tool, "reason", "lookup", "err", err.Error())
		return Output{}, err
	}

	started := time.Now()
	out, err := tc.runner().Run(ctx, path, args...)
	if err != nil {
		if !errors.Is(err, ErrExecution) {
			err = newExecError(tool, args, -1, out, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.ContextKV(ctx, xlog.ERROR,
			"tool", tool,
			"args", args,
			"stdout", string(out.Stdout),
			"stderr", string(out.Stderr),
			"err", err.Error())
		return out, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", tool,
		"elapsed", time.Since(started).String(),
		"stdout", string(out.Stdout),
		"stderr", string(out.Stderr))
	return out, nil
}

// removePartial deletes whatever a failed tool left at path.
func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.KV(xlog.WARNING, "reason", "remove_partial", "path", path, "err", err.Error())
	}
}
