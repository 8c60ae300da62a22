package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/mailrelay/internal/bootstrap"
)

const shutdownTimeout = 10 * time.Second

// serve: run the relay as a long-lived HTTP server.
func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /api/contact, /health and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			relay, err := bootstrap.New(a.cfg, a.logger, bootstrap.Options{ExposeMetrics: true})
			if err != nil {
				return fmt.Errorf("relay initialization failed: %w", err)
			}
			defer relay.Close()

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Port),
				Handler:           relay.Handler,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				// token and send each get UpstreamTimeout
				WriteTimeout: 2*a.cfg.Relay.UpstreamTimeout + 5*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Starting server", "addr", srv.Addr, "transport", a.cfg.Relay.Transport)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().Uint16("port", 0, "listen port (env PORT, default 3000)")
	_ = a.v.BindPFlag("PORT", cmd.Flags().Lookup("port"))
	return cmd
}
