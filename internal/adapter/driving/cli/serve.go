package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/travelerpub/internal/adapter/driving/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync on a schedule and serve the JSON API",
	Long: `Runs the publish workflow immediately and then every
TRAVELERPUB_SYNC_INTERVAL, and serves the run history API on
TRAVELERPUB_LISTEN_ADDR until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newHTTPServer creates the API server with conservative timeouts.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	_, client, err := a.portal(ctx)
	if err != nil {
		return err
	}
	syncSvc := a.syncService(client)

	apiHandler := httphandler.NewHandler(a.runs, a.jobs, syncSvc, slog.Default())
	srv := newHTTPServer(a.cfg.ListenAddr, httphandler.NewServeMux(apiHandler, slog.Default()))

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		syncSvc.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("travelerpub started",
		"version", version,
		"listen_addr", a.cfg.ListenAddr,
		"sync_interval", a.cfg.SyncInterval,
	)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// The database stays open until the in-flight run has been recorded.
	<-syncDone
	slog.Info("shutdown complete")
	return runErr
}
