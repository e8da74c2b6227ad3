package defacer

import "context"

const anonymiPackage = "anonymi"

// anonymiScript calls anonymi.anonymize(input, output) from the interpreter.
const anonymiScript = "import sys\nfrom anonymi import anonymize\nanonymize(sys.argv[1], sys.argv[2])"

// AnonyMI prefers the anonymi Python package and falls back to the anonymi CLI.
type AnonyMI struct {
	tc *Toolchain
}

// NewAnonyMI returns the dual-mode anonymi method.
func NewAnonyMI(tc *Toolchain) *AnonyMI {
	return &AnonyMI{tc: tc}
}

func (a *AnonyMI) library() Probe {
	return a.tc.ImportProbe(anonymiPackage)
}

func (a *AnonyMI) cli() Probe {
	return a.tc.LookPathProbe(ToolAnonymi)
}

func (a *AnonyMI) Available() bool {
	return AnyProbe(a.cli(), a.library()).Available()
}

// UsesLibrary reports which mode Run will select on this host.
func (a *AnonyMI) UsesLibrary() bool {
	return a.library().Available()
}

func (a *AnonyMI) Run(ctx context.Context, input, output string) error {
	var err error
	if a.UsesLibrary() {
		_, err = a.tc.Exec(ctx, a.tc.python(), "-c", anonymiScript, input, output)
	} else {
		_, err = a.tc.Exec(ctx, ToolAnonymi, input, output)
	}
	if err != nil {
		removePartial(output)
		return err
	}
	return nil
}
