package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewMethodsCmd creates the "methods" subcommand.
func NewMethodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "methods",
		Short: "List defacing methods and whether their tools are installed",
		Args:  cobra.NoArgs,
		RunE:  runMethods,
	}
	cmd.Flags().Bool("all", false, "Include methods whose tools are missing")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

type methodRow struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	Install     string `json:"install,omitempty"`
}

func runMethods(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	asJSON, _ := cmd.Flags().GetBool("json")

	rows := []methodRow{}
	for _, d := range reg.All() {
		ok := d.Available()
		if !ok && !all {
			continue
		}
		row := methodRow{Value: d.ID, Label: d.Label, Description: d.Description, Available: ok}
		if !ok {
			row.Install = d.InstallHint()
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"methods": rows, "total": len(rows)})
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "no defacing methods are available; run with --all to see what to install") //nolint:errcheck
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tAVAILABLE\tDESCRIPTION") //nolint:errcheck
	for _, r := range rows {
		desc := r.Description
		if r.Install != "" {
			desc = strings.TrimSpace(desc + " (" + r.Install + ")")
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", r.Value, r.Available, desc) //nolint:errcheck
	}
	return tw.Flush()
}
