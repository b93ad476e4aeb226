package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/taxbridge/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the order API",
		Long:  "Signs with JWT_SECRET, JWT_ISSUER and JWT_AUDIENCE from the environment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verifier, err := auth.NewVerifier(os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"), os.Getenv("JWT_AUDIENCE"))
			if err != nil {
				return err
			}
			token, err := verifier.Sign(subject, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	c.Flags().StringVarP(&subject, "subject", "s", "storefront", "token subject")
	c.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return c
}
