package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/basakesin/mri-defacing-platform/internal/infra/eventbus"
	"github.com/basakesin/mri-defacing-platform/internal/mcpserver"
)

// NewMCPCmd creates the "mcp" subcommand.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the defacing tools over MCP on stdio",
		Long: "Serve list_methods and deface_file as Model Context Protocol tools on stdin/stdout.\n" +
			"Logs go to stderr. Runs are recorded in the job database.",
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := eventbus.New()
	svc, err := newPipeline(cfg, bus)
	if err != nil {
		bus.Close()
		return err
	}

	hist, err := openHistory(ctx, cfg, bus, svc.InUse)
	if err != nil {
		bus.Close()
		return err
	}
	defer hist.Close()
	return mcpserver.Serve(ctx, svc)
}
