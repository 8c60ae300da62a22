package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/mailrelay/internal/bootstrap"
)

// send: relay one submission given on the command line, through the same
// validation and transport as the HTTP endpoint.
func sendCmd(a *app) *cobra.Command {
	var name, addr, phone, message string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Relay a single submission from flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			relay, err := bootstrap.New(a.cfg, a.logger, bootstrap.Options{})
			if err != nil {
				return fmt.Errorf("relay initialization failed: %w", err)
			}
			defer relay.Close()

			outcome, err := relay.Service.Submit(cmd.Context(), map[string]string{
				"name":    name,
				"email":   addr,
				"phone":   phone,
				"message": message,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "submitter name")
	cmd.Flags().StringVar(&addr, "email", "", "submitter email (becomes reply-to)")
	cmd.Flags().StringVar(&phone, "phone", "", "submitter phone (optional)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
