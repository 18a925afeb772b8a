package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/loom/pkg/janitor"
	"github.com/cuemby/loom/pkg/log"
	"github.com/cuemby/loom/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the janitor loop plus an HTTP metrics/health endpoint in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKernel(cmd)
		if err != nil {
			return err
		}

		metrics.SetVersion(Version)
		metrics.RegisterComponent("storage", true, "ready")
		metrics.RegisterComponent("janitor", false, "starting")

		addr, _ := cmd.Flags().GetString("http-addr")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", metrics.HealthHandler())
		mux.HandleFunc("/readyz", metrics.ReadyHandler())
		mux.HandleFunc("/livez", metrics.LivenessHandler())

		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			log.Logger.Info().Str("addr", addr).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("http server error")
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nshutting down...")
			cancel()
		}()

		j := janitor.New(k, k.JanitorInterval(), nil)
		metrics.UpdateComponent("janitor", true, "running")

		err = j.Run(ctx)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)

		return err
	},
}

func init() {
	serveCmd.Flags().String("http-addr", "127.0.0.1:9090", "Address for the /metrics, /healthz, /readyz, /livez endpoints")
}
