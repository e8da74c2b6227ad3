// Package pipeline runs one defacing request end to end: validate, stage the upload
// in a private work directory, run the method, hand the result to the caller and
// remove the directory on every exit path.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/basakesin/mri-defacing-platform/internal/domain/defacer"
	"github.com/basakesin/mri-defacing-platform/internal/domain/job"
	"github.com/basakesin/mri-defacing-platform/internal/infra/eventbus"
	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
	"github.com/basakesin/mri-defacing-platform/internal/infra/telemetry"
)

var logger = logging.NewPackageLogger("pipeline")

// Request is one defacing job as received from a caller.
type Request struct {
	// Filename is the client-supplied name; only its base name is used.
	Filename string
	// Method is a registry identifier; empty selects defacer.DefaultMethod unless
	// MethodSet is true.
	Method string
	// MethodSet reports that the caller sent a method field. A set but empty
	// Method is rejected as unsupported.
	MethodSet bool
	Body      io.Reader
	// Subject identifies the authenticated caller, if any.
	Subject string
}

// Artifact is the defaced volume handed to the deliver callback. File is open for
// reading and is closed, and the directory holding it removed, once deliver returns.
type Artifact struct {
	JobID        string
	Method       string
	DownloadName string
	Path         string
	Size         int64
	File         *os.File
}

// DeliverFunc receives the artifact while its file still exists.
type DeliverFunc func(Artifact) error

// OutputName is the download name for method. It never contains the uploaded name.
func OutputName(method string) string {
	return "defaced_" + method + defacer.ExtNii
}

// Service executes requests against a method registry.
type Service struct {
	registry *defacer.Registry
	workRoot string
	bus      eventbus.EventBus
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string

	mu     sync.Mutex
	active map[string]struct{} // base names of live work directories
}

// Option configures a Service.
type Option func(*Service)

// WithWorkRoot sets the parent of per-request directories. Empty means os.TempDir().
func WithWorkRoot(dir string) Option {
	return func(s *Service) { s.workRoot = dir }
}

// WithBus publishes a job.Event for every run that passes validation.
func WithBus(bus eventbus.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithMetrics records run metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService returns a Service over registry.
func NewService(registry *defacer.Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		tracer:   telemetry.Tracer(),
		now:      time.Now,
		newID:    uuid.NewString,
		active:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the method registry the service runs against.
func (s *Service) Registry() *defacer.Registry {
	return s.registry
}

// Validate checks a request without touching disk and returns the cleaned base name
// and the selected method.
func (s *Service) Validate(filename, method string) (string, defacer.Descriptor, error) {
	return s.validate(filename, method, false)
}

func (s *Service) validate(filename, method string, methodSet bool) (string, defacer.Descriptor, error) {
	name := baseName(filename)
	if name == "" {
		return "", defacer.Descriptor{}, invalidInput("no file selected")
	}
	if !defacer.IsNifti(name) {
		return "", defacer.Descriptor{}, invalidInput("only .nii or .nii.gz files are supported")
	}

	if method == "" && !methodSet {
		method = defacer.DefaultMethod
	}
	desc, ok := s.registry.Lookup(method)
	if !ok {
		return "", defacer.Descriptor{}, invalidInput("unsupported method: %s", method)
	}
	if !desc.Available() {
		err := errors.Newf("method %s is not available on this server: %s", desc.ID, desc.InstallHint())
		return "", defacer.Descriptor{}, errors.Mark(err, ErrMethodUnavailable)
	}
	return name, desc, nil
}

// Execute validates req, runs the method in a fresh work directory and passes the
// result to deliver. Validation errors return before any file is written. Every
// later outcome is published as a job.Event.
func (s *Service) Execute(ctx context.Context, req Request, deliver DeliverFunc) error {
	name, desc, err := s.validate(req.Filename, req.Method, req.MethodSet)
	if err != nil {
		return err
	}

	r := &run{
		jobID:   s.newID(),
		method:  desc.ID,
		subject: req.Subject,
		ext:     inputExt(name),
		started: s.now(),
	}

	ctx, span := s.tracer.Start(ctx, "deface.pipeline", trace.WithAttributes(
		attribute.String("method", r.method),
		attribute.String("job.id", r.jobID),
	))
	defer span.End()

	err = s.execute(ctx, r, name, desc.Method, req.Body, deliver)
	s.finish(ctx, span, r, err)
	return err
}

type run struct {
	jobID       string
	method      string
	subject     string
	ext         string
	inputBytes  int64
	outputBytes int64
	started     time.Time
}

func (s *Service) execute(ctx context.Context, r *run, name string, method defacer.Method, body io.Reader, deliver DeliverFunc) error {
	dir, err := os.MkdirTemp(s.workRoot, job.WorkDirPrefix+"*")
	if err != nil {
		return errors.Wrap(err, "create work directory")
	}
	s.track(dir)
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.KV(xlog.WARNING, "reason", "cleanup_failed", "dir", dir, "err", rmErr.Error())
		}
		s.untrack(dir)
	}()

	output := filepath.Join(dir, OutputName(r.method))
	if name == filepath.Base(output) {
		name = "input_" + name
	}
	input := filepath.Join(dir, name)

	r.inputBytes, err = stage(input, body)
	if err != nil {
		return err
	}

	if err := method.Run(ctx, input, output); err != nil {
		return err
	}

	f, err := os.Open(output)
	if errors.Is(err, os.ErrNotExist) {
		return errors.Mark(errors.Newf("%s reported success but produced no output", r.method), ErrOutputMissing)
	}
	if err != nil {
		return errors.Wrap(err, "open output")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat output")
	}
	r.outputBytes = info.Size()

	return deliver(Artifact{
		JobID:        r.jobID,
		Method:       r.method,
		DownloadName: OutputName(r.method),
		Path:         output,
		Size:         r.outputBytes,
		File:         f,
	})
}

// InUse reports whether dir is the work directory of a run still in progress.
func (s *Service) InUse(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[filepath.Base(dir)]
	return ok
}

func (s *Service) track(dir string) {
	s.mu.Lock()
	s.active[filepath.Base(dir)] = struct{}{}
	s.mu.Unlock()
}

func (s *Service) untrack(dir string) {
	s.mu.Lock()
	delete(s.active, filepath.Base(dir))
	s.mu.Unlock()
}

func (s *Service) finish(ctx context.Context, span trace.Span, r *run, err error) {
	finished := s.now()
	class := Classify(err)

	outcome := job.OutcomeSuccess
	msg := ""
	if err != nil {
		outcome = job.OutcomeFailed
		msg = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "deface_failed",
			"job", r.jobID,
			"method", r.method,
			"class", string(class),
			"err", msg)
	} else {
		logger.ContextKV(ctx, xlog.INFO,
			"job", r.jobID,
			"method", r.method,
			"input_bytes", r.inputBytes,
			"output_bytes", r.outputBytes,
			"elapsed", finished.Sub(r.started).String())
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))

	s.metrics.RecordRun(ctx, telemetry.Run{
		Method:      r.method,
		Outcome:     string(outcome),
		Class:       string(class),
		Duration:    finished.Sub(r.started),
		UploadBytes: r.inputBytes,
	})

	if s.bus != nil {
		s.bus.Publish(eventbus.TopicJob, job.Event{
			JobID:       r.jobID,
			Method:      r.method,
			Outcome:     outcome,
			ErrorClass:  class,
			Error:       msg,
			InputExt:    r.ext,
			InputBytes:  r.inputBytes,
			OutputBytes: r.outputBytes,
			Subject:     r.subject,
			StartedAt:   r.started,
			FinishedAt:  finished,
		})
	}
}

func stage(path string, body io.Reader) (int64, error) {
	if body == nil {
		return 0, errors.New("stage input: empty body")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, errors.Wrap(err, "stage input")
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, errors.Wrap(err, "stage input")
	}
	return n, nil
}

// baseName strips any client-side directory, including Windows separators.
func baseName(filename string) string {
	name := strings.TrimSpace(strings.ReplaceAll(filename, `\`, "/"))
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func inputExt(name string) string {
	if strings.HasSuffix(name, defacer.ExtNiiGz) {
		return defacer.ExtNiiGz
	}
	return defacer.ExtNii
}
