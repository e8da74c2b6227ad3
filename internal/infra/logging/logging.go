// Package logging configures the process-wide xlog formatter and level.
// Packages declare their own logger with NewPackageLogger and log key/value pairs.
package logging

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

// Repo is the repository prefix shared by every package logger.
const Repo = "github.com/basakesin/mri-defacing-platform"

const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewPackageLogger returns a logger registered under Repo for pkg.
func NewPackageLogger(pkg string) *xlog.PackageLogger {
	return xlog.NewPackageLogger(Repo, pkg)
}

// ParseLevel maps a level name to an xlog level.
func ParseLevel(name string) (xlog.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return xlog.TRACE, nil
	case "debug":
		return xlog.DEBUG, nil
	case "", "info":
		return xlog.INFO, nil
	case "notice":
		return xlog.NOTICE, nil
	case "warn", "warning":
		return xlog.WARNING, nil
	case "error":
		return xlog.ERROR, nil
	case "critical":
		return xlog.CRITICAL, nil
	default:
		return xlog.INFO, errors.Newf("unknown log level %q", name)
	}
}

// Configure installs the formatter and global level. Called once from the CLI.
func Configure(level, format string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		xlog.SetFormatter(xlog.NewStringFormatter(w))
	case FormatJSON:
		xlog.SetFormatter(xlog.NewJSONFormatter(w))
	default:
		return errors.Newf("unknown log format %q", format)
	}

	xlog.SetGlobalLogLevel(lvl)
	return nil
}
