package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"

	"github.com/basakesin/mri-defacing-platform/internal/api"
	"github.com/basakesin/mri-defacing-platform/internal/api/middleware"
	"github.com/basakesin/mri-defacing-platform/internal/infra/eventbus"
	"github.com/basakesin/mri-defacing-platform/internal/server"
	pkgauth "github.com/basakesin/mri-defacing-platform/pkg/auth"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "Listen host (overrides DEFACE_HOST)")
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides DEFACE_PORT)")
	cmd.Flags().String("db", "", "Job database path (overrides DEFACE_DB_PATH)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Port = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
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

	var parser middleware.TokenParser
	if cfg.AuthEnabled() {
		signer, err := pkgauth.NewSigner(cfg.JWTSecret, cfg.JWTExpiry)
		if err != nil {
			return exitError(ExitConfig, "jwt: %v", err)
		}
		parser = signer
	}

	router := api.NewRouter(api.Deps{
		Pipeline:       svc,
		Jobs:           hist.store,
		Auth:           parser,
		CORSOrigin:     cfg.CORSOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Host
	srvCfg.Port = cfg.Port

	available := make([]string, 0, svc.Registry().Len())
	for _, d := range svc.Registry().Available() {
		available = append(available, d.ID)
	}
	logger.KV(xlog.NOTICE,
		"status", "starting",
		"addr", cfg.Addr(),
		"available", available,
		"auth", cfg.AuthEnabled(),
		"work_dir", cfg.WorkDir,
		"db", cfg.DBPath)

	return server.NewServer(router, srvCfg).Run(ctx)
}
