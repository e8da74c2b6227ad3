package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basakesin/mri-defacing-platform/internal/domain/defacer"
	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
)

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input.nii[.gz]>",
		Short: "Deface one local volume",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	cmd.Flags().StringP("method", "m", "", "Defacing method (default pydeface)")
	cmd.Flags().StringP("output", "o", "", "Output path (default ./defaced_<method>.nii)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := newPipeline(cfg, nil)
	if err != nil {
		return err
	}

	method, _ := cmd.Flags().GetString("method")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		m := method
		if m == "" {
			m = defacer.DefaultMethod
		}
		output = pipeline.OutputName(m)
	}

	res, err := svc.RunFile(cmd.Context(), args[0], output, method, "")
	if err != nil {
		if pipeline.IsClientError(err) {
			return &ExitError{Code: ExitUsage, Err: err}
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes, method %s, job %s)\n", res.Output, res.Size, res.Method, res.JobID) //nolint:errcheck
	return nil
}
