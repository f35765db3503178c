package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/netguard/auth"
	"github.com/jonwraymond/netguard/health"
	"github.com/jonwraymond/netguard/observe"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker and queue with status and metrics endpoints",
		Long: `Serve /healthz (liveness), /status (tracker snapshot and queue statistics)
and /metrics (Prometheus). With server.require_auth, /status and /metrics
require a bearer token signed with auth.signing_key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := newRegistry()
			rt, err := start(cmd, flags, runtimeOptions{registerer: reg})
			if err != nil {
				return err
			}
			defer func() { _ = rt.close(cmd.Context()) }()

			if addr == "" {
				addr = rt.cfg.Server.Addr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}

			ctx := cmd.Context()
			unsubscribe := rt.tracker.Subscribe(func(from, to health.Status) {
				rt.logger.Info(ctx, "backend status changed",
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()},
				)
			})
			defer unsubscribe()

			if rt.cfg.Recovery.Probe.URL == "" {
				rt.settle(ctx)
			}
			rt.tracker.Start(ctx)
			rt.queue.Start(ctx)

			srv := &http.Server{
				Handler:           newServeMux(rt, reg),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errc := make(chan error, 1)
			go func() { errc <- srv.Serve(ln) }()

			rt.logger.Info(ctx, "serving", observe.Field{Key: "addr", Value: ln.Addr().String()})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}

func newRegistry() *promclient.Registry {
	reg := promclient.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newServeMux(rt *runtime, reg *promclient.Registry) *http.ServeMux {
	stats := func() any { return rt.gateway.QueueStats() }
	metrics := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	mux := http.NewServeMux()
	if !rt.cfg.Server.RequireAuth || rt.verifier == nil {
		health.RegisterHandlers(mux, rt.tracker, stats)
		mux.Handle("/metrics", metrics)
		return mux
	}

	mux.HandleFunc("/healthz", health.LivenessHandler())
	mux.Handle("/status", auth.RequireBearer(rt.verifier, health.StatusHandler(rt.tracker, stats)))
	mux.Handle("/metrics", auth.RequireBearer(rt.verifier, metrics))
	return mux
}
