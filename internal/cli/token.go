package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/tabpile/internal/mgmt"
)

// TokenIssueOptions holds options for token issue.
type TokenIssueOptions struct {
	*RootOptions
	Role    string
	Subject string
	TTL     time.Duration
}

// NewTokenCommand creates the token command group.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage management API bearer tokens",
	}
	cmd.AddCommand(newTokenIssueCommand(rootOpts))
	return cmd
}

func newTokenIssueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenIssueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a JWT for MGMT_AUTH_MODE=jwt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.MgmtJWTSecret == "" {
				return fmt.Errorf("MGMT_JWT_SECRET is not set")
			}

			token, err := mgmt.IssueToken(cfg.MgmtJWTSecret, mgmt.Role(opts.Role), opts.Subject, opts.TTL)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, map[string]string{"token": token})
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Role, "role", string(mgmt.RoleReadOnly), "role claim (readonly|operator|admin)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "cli", "subject claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
