package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/pkg/adapters/remote"
	"github.com/aretw0/notetaker/pkg/core"
)

var (
	serveAddr    string
	serveToken   string
	serveMetrics string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Share the configured backend over HTTP",
	Long: `Serve exposes the configured backend (usually a notes directory) with the
protocol spoken by the remote adapter, so other clients can run with
--adapter remote --endpoint http://<addr>.

Prometheus metrics are served without authentication on --metrics-path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := notebookOptions(cmd)
		if err != nil {
			return err
		}
		svc, err := notetaker.OpenRemote(opts...)
		if err != nil {
			return err
		}
		if closer, ok := svc.(io.Closer); ok {
			defer closer.Close()
		}

		ln, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return err
		}
		httpServer := &http.Server{
			Handler:           serveMux(svc, serveToken, serveMetrics),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errs := make(chan error, 1)
		go func() {
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
			close(errs)
		}()
		slog.Info("serving notes", "addr", ln.Addr().String())
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", ln.Addr())

		select {
		case err := <-errs:
			return err
		case <-ctx.Done():
		}
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Websocket streams are hijacked and ignored by Shutdown; closing the
		// backend (deferred above) ends them.
		return httpServer.Shutdown(shutdownCtx)
	},
}

// serveMux routes the note protocol and, unless metricsPath is empty, the
// metrics of this process.
func serveMux(svc core.RemoteService, token, metricsPath string) http.Handler {
	config := remote.HandlerConfig{Token: token, Logger: slog.Default()}
	if metricsPath == "" {
		return remote.NewHandler(svc, config)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	config.Metrics = remote.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", remote.NewHandler(svc, config))
	return mux
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8080", "Address to listen on")
	serveCmd.Flags().StringVar(&serveToken, "require-token", "", "Bearer token clients must present")
	serveCmd.Flags().StringVar(&serveMetrics, "metrics-path", "/metrics", "Path for Prometheus metrics, empty to disable")
}
