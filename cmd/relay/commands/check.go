package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/mailrelay/internal"
	"github.com/dukerupert/mailrelay/internal/bootstrap"
)

// check: print the effective configuration without secrets, and optionally
// prove the app registration works by acquiring a token.
func checkCmd(a *app) *cobra.Command {
	var acquire bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration (secrets are never printed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			creds := a.cfg.Credentials

			fmt.Fprintf(out, "transport:        %s\n", a.cfg.Relay.Transport)
			fmt.Fprintf(out, "mailbox:          %s\n", internal.MaskAddress(creds.MailboxAddress))
			fmt.Fprintf(out, "fallback contact: %s\n", internal.MaskAddress(a.cfg.Relay.FallbackContact))
			if a.cfg.RequiresApp() {
				fmt.Fprintf(out, "tenant id:        %s\n", presence(creds.TenantID))
				fmt.Fprintf(out, "client id:        %s\n", presence(creds.ClientID))
				fmt.Fprintf(out, "client secret:    %s\n", presence(creds.ClientSecret))
				fmt.Fprintf(out, "api root:         %s\n", a.cfg.Graph.APIRoot)
			}

			if missing := creds.Missing(a.cfg.RequiresApp()); len(missing) > 0 {
				return fmt.Errorf("configuration incomplete: missing %s", strings.Join(missing, ", "))
			}

			if !acquire || !a.cfg.RequiresApp() {
				fmt.Fprintln(out, "configuration complete")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Relay.UpstreamTimeout)
			defer cancel()
			if _, err := bootstrap.NewTokenSource(a.cfg, a.logger).Token(ctx); err != nil {
				return fmt.Errorf("token acquisition failed: %w", err)
			}
			fmt.Fprintln(out, "configuration complete, token acquired")
			return nil
		},
	}

	cmd.Flags().BoolVar(&acquire, "token", false, "acquire a token from the identity provider")
	return cmd
}

func presence(v string) string {
	if v == "" {
		return "missing"
	}
	return "set"
}
