package defacer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
)

type recordedCall struct {
	tool string
	args []string
}

// fakeRunner records invocations and delegates behaviour to fn.
type fakeRunner struct {
	mu    sync.Mutex
	calls []recordedCall
	fn    func(tool string, args []string) (Output, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (Output, error) {
	tool := filepath.Base(name)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{tool: tool, args: append([]string(nil), args...)})
	f.mu.Unlock()
	if f.fn == nil {
		return Output{}, nil
	}
	return f.fn(tool, args)
}

func (f *fakeRunner) toolCalls(tool string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.tool == tool {
			out = append(out, c)
		}
	}
	return out
}

func fakeLookup(installed ...string) LookupFunc {
	set := make(map[string]struct{}, len(installed))
	for _, name := range installed {
		set[name] = struct{}{}
	}
	return func(name string) (string, error) {
		if _, ok := set[name]; ok {
			return "/opt/tools/" + name, nil
		}
		return "", exec.ErrNotFound
	}
}

func newFakeToolchain(r *fakeRunner, installed ...string) *Toolchain {
	return &Toolchain{Runner: r, Lookup: fakeLookup(installed...), Python: DefaultPython}
}

// stageInput writes a fake volume named name into a fresh directory.
func stageInput(t *testing.T, name string) (dir, input, output string) {
	t.Helper()
	dir = t.TempDir()
	input = filepath.Join(dir, name)
	if err := os.WriteFile(input, []byte("nifti"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return dir, input, filepath.Join(dir, "defaced_test.nii")
}

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
