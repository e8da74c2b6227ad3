// Package cli builds the deface command tree.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/basakesin/mri-defacing-platform/internal/domain/defacer"
	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
	"github.com/basakesin/mri-defacing-platform/internal/infra/config"
	"github.com/basakesin/mri-defacing-platform/internal/infra/eventbus"
	"github.com/basakesin/mri-defacing-platform/internal/infra/logging"
	"github.com/basakesin/mri-defacing-platform/internal/infra/telemetry"
	"github.com/basakesin/mri-defacing-platform/internal/version"
)

var logger = logging.NewPackageLogger("cli")

// NewRootCmd returns the deface command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "deface",
		Short: "MRI defacing service",
		Long: "deface removes facial features from NIfTI head scans using pydeface, quickshear,\n" +
			"deepdefacer, mri_deface or AnonyMI, over HTTP, MCP or the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}
	root.SetVersionTemplate(version.String() + "\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Err: err}
	})

	root.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, notice, warning, error, critical)")
	root.PersistentFlags().String("log-format", "", "Log format (text, json)")

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewMethodsCmd())
	root.AddCommand(NewRunCmd())
	root.AddCommand(NewMCPCmd())
	root.AddCommand(NewTokenCmd())
	root.AddCommand(NewVersionCmd())
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		root.PrintErrln("Error:", err.Error())
	}
	return ExitCode(err)
}

// loadConfig reads the environment, applies persistent flag overrides and installs
// the log formatter on stderr.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return config.Config{}, &ExitError{Code: ExitConfig, Err: err}
	}
	return cfg, nil
}

// newRegistry builds the method registry from the tool settings in cfg.
func newRegistry(cfg config.Config) (*defacer.Registry, error) {
	tc := defacer.NewToolchain(defacer.ToolchainConfig{
		Executables: cfg.Executables,
		SearchPath:  cfg.SearchPath,
		Python:      cfg.Python,
		Timeout:     cfg.ToolTimeout,
	})
	return defacer.DefaultRegistry(tc, cfg.Disabled...)
}

// newPipeline returns a pipeline over cfg's registry. bus may be nil.
func newPipeline(cfg config.Config, bus eventbus.EventBus) (*pipeline.Service, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create work directory root")
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithWorkRoot(cfg.WorkDir),
		pipeline.WithMetrics(telemetry.Default()),
	}
	if bus != nil {
		opts = append(opts, pipeline.WithBus(bus))
	}
	return pipeline.NewService(reg, opts...), nil
}
