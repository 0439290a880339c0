package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Narodni-repozitar/nr-Nresults/internal/adapters/rest"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Long: `Serve the records, drafts, taxonomy and schema endpoints.

Prometheus metrics are exposed on server.metrics_path. The server stops
gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cmd)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :5000)")
	_ = opts.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, cmd *cobra.Command) error {
	a, err := openApp(ctx, opts.cfg, opts.logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			opts.logger.Error("shutdown.close_failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              opts.cfg.Server.Addr,
		Handler:           newRouter(a, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		opts.logger.Info("server.listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	opts.logger.Info("server.shutting_down")
	return srv.Shutdown(shutdownCtx)
}

func newRouter(a *app, opts *rootOptions) http.Handler {
	r := chi.NewRouter()
	if path := opts.cfg.Server.MetricsPath; path != "" {
		r.Handle(path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}
	r.Mount("/", rest.NewHandler(a.service, rest.WithLogger(opts.logger)))
	return r
}
