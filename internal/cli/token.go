package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	pkgauth "github.com/basakesin/mri-defacing-platform/pkg/auth"
)

// NewTokenCmd creates the "token" subcommand.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for POST /deface",
		Long:  "Issue an HS256 bearer token signed with DEFACE_JWT_SECRET.",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}
	cmd.Flags().String("subject", "", "Token subject, recorded with each job (required)")
	cmd.Flags().Duration("expiry", 0, "Token lifetime (default DEFACE_JWT_EXPIRY)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.AuthEnabled() {
		return exitError(ExitConfig, "DEFACE_JWT_SECRET is not set; authentication is disabled")
	}

	expiry := cfg.JWTExpiry
	if v, _ := cmd.Flags().GetDuration("expiry"); v > 0 {
		expiry = v
	}
	signer, err := pkgauth.NewSigner(cfg.JWTSecret, expiry)
	if err != nil {
		return exitError(ExitConfig, "jwt: %v", err)
	}

	subject, _ := cmd.Flags().GetString("subject")
	token, err := signer.Generate(subject)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	fmt.Fprintln(cmd.OutOrStdout(), token) //nolint:errcheck
	return nil
}
