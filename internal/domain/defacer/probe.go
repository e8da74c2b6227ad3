package defacer

import (
	"context"
	"time"

	"github.com/effective-security/xlog"
)

// importProbeTimeout bounds the interpreter started by an import probe.
const importProbeTimeout = 15 * time.Second

// Probe answers whether an external capability is installed on this host.
// Implementations never panic and have no side effects.
type Probe interface {
	Available() bool
}

// ProbeFunc adapts a function to Probe. A panic inside f reports unavailable.
type ProbeFunc func() bool

func (f ProbeFunc) Available() (ok bool) {
	if f == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.KV(xlog.DEBUG, "reason", "probe_panic", "panic", r)
			ok = false
		}
	}()
	return f()
}

// LookPathProbe is true only if every name resolves through lookup.
func LookPathProbe(lookup LookupFunc, names ...string) Probe {
	return ProbeFunc(func() bool {
		if lookup == nil || len(names) == 0 {
			return false
		}
		for _, name := range names {
			if _, err := lookup(name); err != nil {
				return false
			}
		}
		return true
	})
}

// AnyProbe is true if at least one probe is true.
func AnyProbe(probes ...Probe) Probe {
	return ProbeFunc(func() bool {
		for _, p := range probes {
			if p != nil && p.Available() {
				return true
			}
		}
		return false
	})
}

// ImportProbe is true if the toolchain's interpreter can import pkg.
func (tc *Toolchain) ImportProbe(pkg string) Probe {
	return ProbeFunc(func() bool {
		python, err := tc.lookup(tc.python())
		if err != nil {
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), importProbeTimeout)
		defer cancel()
		_, err = tc.runner().Run(ctx, python, "-c", "import "+pkg)
		return err == nil
	})
}

// LookPathProbe is true only if every name resolves through the toolchain.
func (tc *Toolchain) LookPathProbe(names ...string) Probe {
	return LookPathProbe(tc.lookup, names...)
}
