package defacer

import "context"

// Method is one defacing tool behind a uniform contract.
//
// Run expects input to exist and output not to exist. On success a readable file is
// at output; on failure the error is marked with ErrExecution and no partial output
// remains.
type Method interface {
	Available() bool
	Run(ctx context.Context, input, output string) error
}

// commandMethod invokes a single program with a fixed argument shape.
type commandMethod struct {
	tc   *Toolchain
	tool string
	argv func(input, output string) []string
}

func (m *commandMethod) Available() bool {
	return m.tc.LookPathProbe(m.tool).Available()
}

func (m *commandMethod) Run(ctx context.Context, input, output string) error {
	if _, err := m.tc.Exec(ctx, m.tool, m.argv(input, output)...); err != nil {
		removePartial(output)
		return err
	}
	return nil
}
