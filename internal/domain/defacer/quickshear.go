package defacer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const (
	brainSuffix = "_brain"
	// bet always writes compressed NIfTI next to the requested base name.
	brainExt = ExtNiiGz
)

// betArgs are the FSL brain-extraction flags: robust centre estimation, fractional
// intensity 0.5, no vertical gradient, and a binary mask alongside the brain image.
var betArgs = []string{"-R", "-f", "0.5", "-g", "0", "-m"}

// Quickshear strips the skull with FSL bet, then shears the face off with quickshear
// using the extracted brain as the mask.
type Quickshear struct {
	tc *Toolchain
}

// NewQuickshear returns the two-step bet + quickshear method.
func NewQuickshear(tc *Toolchain) *Quickshear {
	return &Quickshear{tc: tc}
}

func (q *Quickshear) Available() bool {
	return q.tc.LookPathProbe(ToolBET, ToolQuickshear).Available()
}

// BrainPath is where bet leaves the extracted brain for input.
func BrainPath(input string) string {
	return brainBase(input) + brainExt
}

func brainBase(input string) string {
	base := StripNiiSuffix(filepath.Base(input))
	return filepath.Join(filepath.Dir(input), base+brainSuffix)
}

func (q *Quickshear) Run(ctx context.Context, input, output string) error {
	args := append([]string{input, brainBase(input)}, betArgs...)
	if _, err := q.tc.Exec(ctx, ToolBET, args...); err != nil {
		return errors.Wrap(err, "brain extraction failed")
	}

	// bet can exit 0 without writing anything; the file is the real success signal.
	brain := BrainPath(input)
	if _, err := os.Stat(brain); err != nil {
		return intermediateMissing(filepath.Base(brain))
	}

	if _, err := q.tc.Exec(ctx, ToolQuickshear, input, brain, output); err != nil {
		removePartial(output)
		return errors.Wrap(err, "quickshear failed")
	}
	return nil
}
