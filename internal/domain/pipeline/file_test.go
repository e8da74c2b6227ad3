package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/basakesin/mri-defacing-platform/internal/domain/defacer"
	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
)

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("volume"), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunFile_ExplicitOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := &stubMethod{available: true, payload: "OK"}
	svc := pipeline.NewService(newRegistry(t, map[string]*stubMethod{defacer.MethodPyDeface: m}),
		pipeline.WithWorkRoot(t.TempDir()))

	in := writeInput(t, dir, "scan.nii.gz")
	out := filepath.Join(dir, "clean.nii")
	res, err := svc.RunFile(context.Background(), in, out, "", "")
	if err != nil {
		t.Fatalf("RunFile() error = %v", err)
	}
	if res.Output != out || res.Method != defacer.MethodPyDeface || res.Size != 2 || res.JobID == "" {
		t.Errorf("result = %+v", res)
	}
	b, err := os.ReadFile(out)
	if err != nil || string(b) != "OK" {
		t.Fatalf("output = %q, %v", b, err)
	}
	assertNoPartials(t, dir)
}

func TestRunFile_DefaultOutputNextToInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := &stubMethod{available: true, payload: "OK"}
	svc := pipeline.NewService(newRegistry(t, map[string]*stubMethod{defacer.MethodMRIDeface: m}),
		pipeline.WithWorkRoot(t.TempDir()))

	res, err := svc.RunFile(context.Background(), writeInput(t, dir, "scan.nii"), "", defacer.MethodMRIDeface, "")
	if err != nil {
		t.Fatalf("RunFile() error = %v", err)
	}
	if want := filepath.Join(dir, "defaced_mri_deface.nii"); res.Output != want {
		t.Errorf("Output = %q; want %q", res.Output, want)
	}
}

func TestRunFile_FailureLeavesNoOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := &stubMethod{available: true, fail: errors.Mark(errors.New("exit status 1"), defacer.ErrExecution)}
	svc := pipeline.NewService(newRegistry(t, map[string]*stubMethod{defacer.MethodPyDeface: m}),
		pipeline.WithWorkRoot(t.TempDir()))

	out := filepath.Join(dir, "clean.nii")
	_, err := svc.RunFile(context.Background(), writeInput(t, dir, "scan.nii"), out, defacer.MethodPyDeface, "")
	if !errors.Is(err, defacer.ErrExecution) {
		t.Fatalf("RunFile() error = %v; want ErrExecution", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("output exists after failure: %v", statErr)
	}
	assertNoPartials(t, dir)
}

func TestRunFile_MissingInput(t *testing.T) {
	t.Parallel()

	m := &stubMethod{available: true, payload: "OK"}
	svc := pipeline.NewService(newRegistry(t, map[string]*stubMethod{defacer.MethodPyDeface: m}))

	_, err := svc.RunFile(context.Background(), filepath.Join(t.TempDir(), "nope.nii"), "", "", "")
	if !pipeline.IsClientError(err) {
		t.Fatalf("RunFile() error = %v; want client error", err)
	}
	if m.callCount() != 0 {
		t.Error("method ran for a missing input")
	}
}

func TestSaveTo_ReplacesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.nii")
	if err := os.WriteFile(dest, []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.SaveTo(dest, strings.NewReader("new")); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	b, _ := os.ReadFile(dest)
	if string(b) != "new" {
		t.Errorf("content = %q; want new", b)
	}
	assertNoPartials(t, dir)
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".partial") {
			t.Errorf("partial file left behind: %s", e.Name())
		}
	}
}
