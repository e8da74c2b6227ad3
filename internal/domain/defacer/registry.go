package defacer

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Method identifiers.
const (
	MethodPyDeface    = "pydeface"
	MethodQuickshear  = "quickshear"
	MethodDeepDefacer = "deepdefacer"
	MethodMRIDeface   = "mri_deface"
	MethodAnonymi     = "anonymi"

	// DefaultMethod is used when a request names no method.
	DefaultMethod = MethodPyDeface
)

// Descriptor binds a method identifier to its human-facing metadata.
type Descriptor struct {
	ID          string
	Label       string
	Description string
	// Requires names what must be installed, for install hints.
	Requires []string
	Method   Method
}

// Registry is an immutable mapping from identifier to Descriptor.
type Registry struct {
	order []string
	byID  map[string]Descriptor
}

// NewRegistry builds a registry preserving the order of descs.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(descs)),
		byID:  make(map[string]Descriptor, len(descs)),
	}
	for _, d := range descs {
		if strings.TrimSpace(d.ID) == "" || d.Method == nil {
			return nil, errors.Wrapf(ErrInvalidDescriptor, "descriptor %q", d.ID)
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, errors.Wrapf(ErrDuplicateMethod, "method %q", d.ID)
		}
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r, nil
}

// StandardDescriptors returns the five supported methods bound to tc.
func StandardDescriptors(tc *Toolchain) []Descriptor {
	return []Descriptor{
		{
			ID:          MethodPyDeface,
			Label:       "PyDeface",
			Description: "PyDeface - Industry standard FSL-based method",
			Requires:    []string{"pydeface"},
			Method:      NewPyDeface(tc),
		},
		{
			ID:          MethodQuickshear,
			Label:       "Quickshear",
			Description: "Quickshear - Fast and high-quality defacing",
			Requires:    []string{"bet (FSL)", "quickshear"},
			Method:      NewQuickshear(tc),
		},
		{
			ID:          MethodDeepDefacer,
			Label:       "DeepDefacer",
			Description: "DeepDefacer - AI-powered face detection",
			Requires:    []string{"deepdefacer"},
			Method:      NewDeepDefacer(tc),
		},
		{
			ID:          MethodMRIDeface,
			Label:       "MRI Deface",
			Description: "MRI Deface - FreeSurfer-based approach",
			Requires:    []string{"mri_deface (FreeSurfer)"},
			Method:      NewMRIDeface(tc),
		},
		{
			ID:          MethodAnonymi,
			Label:       "AnonyMI",
			Description: "AnonyMI - Advanced anonymization technique",
			Requires:    []string{"anonymi (CLI or Python package)"},
			Method:      NewAnonyMI(tc),
		},
	}
}

// DefaultRegistry registers the standard methods except those listed in disabled.
func DefaultRegistry(tc *Toolchain, disabled ...string) (*Registry, error) {
	skip := make(map[string]struct{}, len(disabled))
	for _, id := range disabled {
		skip[strings.TrimSpace(id)] = struct{}{}
	}

	descs := make([]Descriptor, 0, 5)
	for _, d := range StandardDescriptors(tc) {
		if _, off := skip[d.ID]; off {
			continue
		}
		descs = append(descs, d)
	}
	return NewRegistry(descs...)
}

// InstallHint tells an operator what to install to enable d.
func (d Descriptor) InstallHint() string {
	names := d.Requires
	if len(names) == 0 {
		names = []string{d.ID}
	}
	return fmt.Sprintf("install %s and make sure it is on PATH", strings.Join(names, " and "))
}

// Available runs the method's probe. A probe that panics or a nil method reports
// unavailable.
func (d Descriptor) Available() bool {
	if d.Method == nil {
		return false
	}
	return ProbeFunc(d.Method.Available).Available()
}

// Lookup finds a descriptor by exact identifier.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// All returns every descriptor in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Available returns the descriptors whose probe passes right now.
func (r *Registry) Available() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		d := r.byID[id]
		if d.Available() {
			out = append(out, d)
		}
	}
	return out
}

// IDs returns every registered identifier in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int { return len(r.order) }
