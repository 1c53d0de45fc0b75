package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flowrahttp "github.com/aretw0/flowra/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the transition engine as a JSON API on http.addr, with Prometheus
metrics on /metrics when metrics are enabled. With --worker and the redis
deferred driver, queued actions are consumed in the same process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		withWorker, _ := cmd.Flags().GetBool("worker")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if addr == "" {
			addr = a.cfg.HTTP.Addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := []flowrahttp.Option{flowrahttp.WithLogger(a.logger)}
		if a.cfg.Metrics.Enabled {
			opts = append(opts, flowrahttp.WithHandler("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{})))
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           flowrahttp.NewHandler(a.engine, a.entities, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errs := make(chan error, 2)
		go func() {
			a.logger.Info("starting flowra server", "addr", addr, "store", a.cfg.Store.Driver)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
		if withWorker {
			go func() {
				if err := runWorker(ctx, a); err != nil {
					errs <- err
				}
			}()
		}

		select {
		case err := <-errs:
			return err
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			return srv.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().Bool("worker", false, "Also consume the redis deferred queue")
}
