package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/open-edge-platform/cx-fetcher/internal/config"
	"github.com/open-edge-platform/cx-fetcher/internal/fetcher"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// Watch command flags
var (
	watchInterval time.Duration
	metricsAddr   string
)

// createWatchCommand creates the watch subcommand
func createWatchCommand() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [flags]",
		Short: "Keep installed extensions up to date",
		Long: `Watch runs an update pass over every installed extension at a fixed
interval until interrupted. With --metrics-addr the fetcher metrics are served
in Prometheus format on /metrics.`,
		Args: cobra.NoArgs,
		RunE: executeWatch,
	}

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0,
		"Time between update passes (default: auto_update.interval from the config)")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"Address to serve Prometheus metrics on, e.g. :9090")
	return watchCmd
}

// executeWatch handles the watch command logic
func executeWatch(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	ctx := cmd.Context()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	interval := watchInterval
	if interval <= 0 {
		interval = config.NewConfigHelpers(a.cfg).AutoUpdateInterval()
	}

	unsubscribe := a.fetcher.Subscribe(func(ev fetcher.Event) {
		log.Infof("extension %s is now at version %s", ev.ID, ev.Info.Version)
	})
	defer unsubscribe()

	if metricsAddr != "" {
		srv, _, err := serveMetrics(metricsAddr, a.metrics)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := a.fetcher.StartAutoUpdate(interval); err != nil {
		return err
	}
	defer a.fetcher.StopAutoUpdate()

	log.Infof("watching %d extensions, press Ctrl+C to stop", len(a.fetcher.Available()))
	<-ctx.Done()
	return nil
}

// serveMetrics starts an HTTP server exposing reg on /metrics and returns it
// with the address it listens on.
func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, net.Addr, error) {
	log := logger.Logger()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	log.Infof("serving metrics on http://%s/metrics", ln.Addr())
	return srv, ln.Addr(), nil
}
