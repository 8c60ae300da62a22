// Package commands implements the relay command line: serve, check and send.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dukerupert/mailrelay/internal"
)

// app is the state shared by subcommands, filled in by the root command's
// PersistentPreRunE.
type app struct {
	v      *viper.Viper
	cfg    *internal.Config
	logger *slog.Logger
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree. Flags override environment
// variables, which override defaults.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "relay",
		Short:        "Relay website contact-form posts to a mailbox",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.NewConfig(a.v)
			if err != nil {
				return fmt.Errorf("config initialization failed: %w", err)
			}
			a.cfg = cfg
			a.logger = internal.NewLogger(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().String("env", "", "environment: dev or prod (env ENV)")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	root.PersistentFlags().String("transport", "", "graph, smtp or log (env MAIL_TRANSPORT)")
	_ = a.v.BindPFlag("ENV", root.PersistentFlags().Lookup("env"))
	_ = a.v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("MAIL_TRANSPORT", root.PersistentFlags().Lookup("transport"))

	root.AddCommand(serveCmd(a), checkCmd(a), sendCmd(a))
	return root
}
