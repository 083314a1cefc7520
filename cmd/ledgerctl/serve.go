package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webledger/ledgerstore/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the registry and serve /metrics, /health, /ready, /live until interrupted",
	Long: `serve opens the DocStore rooted at --data-dir and keeps it open while
exposing Prometheus metrics plus health/readiness/liveness endpoints, the
same shape the metrics server runs under for every other component in this
engine. It blocks until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready, /live on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	store, registry, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	it, err := registry.Iterate(ctx)
	if err != nil {
		metrics.RegisterComponent("registry", false, err.Error())
		return fmt.Errorf("probe registry: %w", err)
	}
	_ = it.Close(ctx)

	metrics.SetVersion(Version)
	metrics.RegisterComponent("docstore", true, "open")
	metrics.RegisterComponent("registry", true, "open")

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	errCh := make(chan error, 1)
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoints:\n")
	fmt.Printf("  - Health check: http://%s/health\n", metricsAddr)
	fmt.Printf("  - Readiness:    http://%s/ready\n", metricsAddr)
	fmt.Printf("  - Liveness:     http://%s/live\n", metricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		metrics.RegisterComponent("registry", false, err.Error())
		return err
	case <-sigCh:
		fmt.Println("shutting down")
		return nil
	}
}
