package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/todos/internal/httpapi"
	"github.com/mesh-intelligence/todos/pkg/types"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the todos REST API over the configured backend",
		Long: `Serve exposes the configured backend under /api/todos, with
/api/health for liveness and /metrics for Prometheus. It runs until
interrupted.

Example:
  todo serve --addr :9000
  todo serve --backend postgres`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlag(cfgKeyListenAddr, cmd.Flags().Lookup("addr")); err != nil {
				return fmt.Errorf("bind flag addr: %w", err)
			}
			if a.v.GetString(cfgKeyBackend) == types.BackendHTTP {
				return usageError("serve needs a storage backend, not %q", types.BackendHTTP)
			}

			backend, cfg, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			srv, err := httpapi.NewServer(backend, a.log, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := a.v.GetString(cfgKeyListenAddr)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s backend on %s\n", cfg.Backend, addr)
			return serve(ctx, srv, addr)
		},
	}
	cmd.Flags().String("addr", defaultListenAddr, "listen address")
	return cmd
}

// serve is replaced in tests.
var serve = func(ctx context.Context, srv *httpapi.Server, addr string) error {
	return srv.ListenAndServe(ctx, addr)
}
