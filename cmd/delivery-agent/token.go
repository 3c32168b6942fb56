package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cakeshop-notifier/internal/common/auth"
)

func tokenCmd() *cobra.Command {
	var (
		id     int64
		role   string
		email  string
		secret string
		issuer string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development token",
		Long: `Sign a token with the notifier's shared secret. Intended for local
testing; production tokens come from the storefront login.

Examples:
  # Delivery boy 42
  delivery-agent token --id 42 --secret $JWT_SECRET

  # Admin token for the /ws/admin endpoint
  delivery-agent token --id 1 --role admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("a secret is required (--secret or $JWT_SECRET)")
			}
			if id <= 0 {
				return errors.New("--id must be positive")
			}
			if role != auth.RoleDelivery && role != auth.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", auth.RoleDelivery, auth.RoleAdmin)
			}

			token, err := auth.NewVerifier(secret, issuer).Issue(id, role, email, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Actor id")
	cmd.Flags().StringVar(&role, "role", auth.RoleDelivery, "Role: delivery or admin")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret (defaults to $JWT_SECRET)")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Issuer claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")

	return cmd
}
