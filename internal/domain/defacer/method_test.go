package defacer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	crdb "github.com/cockroachdb/errors"
)

func TestSingleStepMethods_Arguments(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		tool   string
		build  func(*Toolchain) Method
		expect func(in, out string) []string
	}{
		{
			name:  "pydeface",
			tool:  ToolPyDeface,
			build: NewPyDeface,
			expect: func(in, out string) []string {
				return []string{in, "--outfile", out, "--force"}
			},
		},
		{
			name:  "deepdefacer",
			tool:  ToolDeepDefacer,
			build: NewDeepDefacer,
			expect: func(in, out string) []string {
				return []string{"--input_file", in, "--defaced_output_path", out}
			},
		},
		{
			name:  "mri_deface",
			tool:  ToolMRIDeface,
			build: NewMRIDeface,
			expect: func(in, out string) []string {
				return []string{in, out}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, in, out := stageInput(t, "scan.nii")
			r := &fakeRunner{fn: func(tool string, args []string) (Output, error) {
				writeFile(t, out, "OK")
				return Output{}, nil
			}}
			m := tc.build(newFakeToolchain(r, tc.tool))

			if !m.Available() {
				t.Fatal("expected method to be available")
			}
			if err := m.Run(context.Background(), in, out); err != nil {
				t.Fatalf("Run error = %v", err)
			}
			calls := r.toolCalls(tc.tool)
			if len(calls) != 1 {
				t.Fatalf("expected 1 call to %s, got %d", tc.tool, len(calls))
			}
			if want := tc.expect(in, out); !reflect.DeepEqual(calls[0].args, want) {
				t.Fatalf("args = %v; want %v", calls[0].args, want)
			}
		})
	}
}

func TestSingleStepMethod_NonZeroExit(t *testing.T) {
	t.Parallel()

	_, in, out := stageInput(t, "scan.nii")
	r := &fakeRunner{fn: func(tool string, args []string) (Output, error) {
		writeFile(t, out, "partial")
		o := Output{Stderr: []byte("loading\nERROR: could not register template\n")}
		return o, newExecError(tool, args, 2, o, errors.New("exit status 2"))
	}}
	m := NewPyDeface(newFakeToolchain(r, ToolPyDeface))

	err := m.Run(context.Background(), in, out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !crdb.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	var execErr *ExecError
	if !crdb.As(err, &execErr) {
		t.Fatalf("expected *ExecError in chain, got %T", err)
	}
	if execErr.ExitCode != 2 {
		t.Fatalf("ExitCode = %d; want 2", execErr.ExitCode)
	}
	if !strings.Contains(err.Error(), "pydeface exited with status 2: ERROR: could not register template") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if fileExists(out) {
		t.Fatal("expected partial output to be removed")
	}
}

func TestMethod_PlainRunnerErrorIsMarked(t *testing.T) {
	t.Parallel()

	_, in, out := stageInput(t, "scan.nii")
	r := &fakeRunner{fn: func(string, []string) (Output, error) {
		return Output{}, errors.New("fork failed")
	}}
	err := NewMRIDeface(newFakeToolchain(r, ToolMRIDeface)).Run(context.Background(), in, out)
	if !crdb.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
}

func TestMethod_NotInstalled(t *testing.T) {
	t.Parallel()

	_, in, out := stageInput(t, "scan.nii")
	r := &fakeRunner{}
	m := NewDeepDefacer(newFakeToolchain(r))

	if m.Available() {
		t.Fatal("expected unavailable")
	}
	err := m.Run(context.Background(), in, out)
	if !crdb.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "deepdefacer could not be started") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(r.calls) != 0 {
		t.Fatalf("expected no subprocess, got %d", len(r.calls))
	}
}

func TestQuickshear_Availability(t *testing.T) {
	t.Parallel()

	if NewQuickshear(newFakeToolchain(&fakeRunner{}, ToolQuickshear)).Available() {
		t.Fatal("expected unavailable without bet")
	}
	if !NewQuickshear(newFakeToolchain(&fakeRunner{}, ToolBET, ToolQuickshear)).Available() {
		t.Fatal("expected available with bet and quickshear")
	}
}

func TestQuickshear_PassesBrainArtifactToSecondStep(t *testing.T) {
	t.Parallel()

	dir, in, out := stageInput(t, "scan.nii.gz")
	brain := filepath.Join(dir, "scan_brain.nii.gz")

	r := &fakeRunner{fn: func(tool string, args []string) (Output, error) {
		switch tool {
		case ToolBET:
			writeFile(t, args[1]+".nii.gz", "brain")
		case ToolQuickshear:
			writeFile(t, args[2], "OK")
		}
		return Output{}, nil
	}}
	q := NewQuickshear(newFakeToolchain(r, ToolBET, ToolQuickshear))

	if err := q.Run(context.Background(), in, out); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	bet := r.toolCalls(ToolBET)
	if len(bet) != 1 {
		t.Fatalf("expected 1 bet call, got %d", len(bet))
	}
	wantBet := []string{in, filepath.Join(dir, "scan_brain"), "-R", "-f", "0.5", "-g", "0", "-m"}
	if !reflect.DeepEqual(bet[0].args, wantBet) {
		t.Fatalf("bet args = %v; want %v", bet[0].args, wantBet)
	}

	qs := r.toolCalls(ToolQuickshear)
	if len(qs) != 1 {
		t.Fatalf("expected 1 quickshear call, got %d", len(qs))
	}
	if want := []string{in, brain, out}; !reflect.DeepEqual(qs[0].args, want) {
		t.Fatalf("quickshear args = %v; want %v", qs[0].args, want)
	}
	if BrainPath(in) != brain {
		t.Fatalf("BrainPath = %q; want %q", BrainPath(in), brain)
	}
}

func TestQuickshear_MissingBrainFailsBeforeSecondStep(t *testing.T) {
	t.Parallel()

	_, in, out := stageInput(t, "scan.nii")
	r := &fakeRunner{} // bet exits 0 and writes nothing
	q := NewQuickshear(newFakeToolchain(r, ToolBET, ToolQuickshear))

	err := q.Run(context.Background(), in, out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !crdb.Is(err, ErrIntermediateMissing) {
		t.Fatalf("expected ErrIntermediateMissing, got %v", err)
	}
	if !crdb.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution class, got %v", err)
	}
	if !strings.Contains(err.Error(), "scan_brain.nii.gz") {
		t.Fatalf("expected missing path in message, got %q", err.Error())
	}
	if n := len(r.toolCalls(ToolQuickshear)); n != 0 {
		t.Fatalf("quickshear invoked %d times; want 0", n)
	}
}

func TestQuickshear_BetFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	_, in, out := stageInput(t, "scan.nii")
	r := &fakeRunner{fn: func(tool string, args []string) (Output, error) {
		if tool == ToolBET {
			return Output{}, newExecError(tool, args, 1, Output{}, errors.New("exit status 1"))
		}
		return Output{}, nil
	}}
	err := NewQuickshear(newFakeToolchain(r, ToolBET, ToolQuickshear)).Run(context.Background(), in, out)
	if !crdb.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
	if crdb.Is(err, ErrIntermediateMissing) {
		t.Fatal("bet exit failure must not be reported as missing artifact")
	}
	if !strings.HasPrefix(err.Error(), "brain extraction failed") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if n := len(r.toolCalls(ToolQuickshear)); n != 0 {
		t.Fatalf("quickshear invoked %d times; want 0", n)
	}
}

func TestAnonyMI_LibraryMode(t *testing.T) {
	t.Parallel()

	_, in, out := stageInput(t, "scan.nii")
	r := &fakeRunner{fn: func(tool string, args []string) (Output, error) {
		if tool == DefaultPython && len(args) == 4 {
			writeFile(t, args[3], "OK")
		}
		return Output{}, nil
	}}
	a := NewAnonyMI(newFakeToolchain(r, DefaultPython))

	if !a.Available() {
		t.Fatal("expected available through the library")
	}
	if !a.UsesLibrary() {
		t.Fatal("expected library mode")
	}
	if err := a.Run(context.Background(), in, out); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if n := len(r.toolCalls(ToolAnonymi)); n != 0 {
		t.Fatalf("CLI invoked %d times in library mode", n)
	}
	var script []recordedCall
	for _, c := range r.toolCalls(DefaultPython) {
		if len(c.args) == 4 {
			script = append(script, c)
		}
	}
	if len(script) != 1 {
		t.Fatalf("expected one library invocation, got %d", len(script))
	}
	if script[0].args[0] != "-c" || script[0].args[2] != in || script[0].args[3] != out {
		t.Fatalf("unexpected library args %v", script[0].args)
	}
	if !fileExists(out) {
		t.Fatal("expected output")
	}
}

func TestAnonyMI_CLIFallback(t *testing.T) {
	t.Parallel()

	_, in, out := stageInput(t, "scan.nii")
	r := &fakeRunner{fn: func(tool string, args []string) (Output, error) {
		if tool == DefaultPython {
			return Output{}, errors.New("No module named 'anonymi'")
		}
		writeFile(t, args[1], "OK")
		return Output{}, nil
	}}
	a := NewAnonyMI(newFakeToolchain(r, DefaultPython, ToolAnonymi))

	if !a.Available() {
		t.Fatal("expected available through the CLI")
	}
	if a.UsesLibrary() {
		t.Fatal("expected CLI mode")
	}
	if err := a.Run(context.Background(), in, out); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	calls := r.toolCalls(ToolAnonymi)
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].args, []string{in, out}) {
		t.Fatalf("unexpected CLI calls %#v", calls)
	}
}

func TestAnonyMI_Unavailable(t *testing.T) {
	t.Parallel()

	if NewAnonyMI(newFakeToolchain(&fakeRunner{})).Available() {
		t.Fatal("expected unavailable with neither library nor CLI")
	}
}

func TestRemovePartial_IgnoresMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.nii")
	removePartial(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to stay absent, got %v", err)
	}
}
