package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/config"
	"github.com/kailas-cloud/jobmatch/internal/metrics"
	"github.com/kailas-cloud/jobmatch/internal/usecase/jobsync"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, optionally with periodic sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, flags, func(ctx context.Context, a *app) error {
				return serve(ctx, a, interval)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "sync-interval", 0, "run a sync pass this often (overrides sync.interval_sec; 0 keeps the config value)")
	return cmd
}

func serve(ctx context.Context, a *app, interval time.Duration) error {
	cfg, logger := a.cfg, a.logger
	if interval <= 0 {
		interval = config.Seconds(cfg.Sync.IntervalSec)
	}

	var syncer *jobsync.Service
	if cfg.Store.Enabled() {
		s, err := a.syncService("")
		if err != nil {
			return err
		}
		syncer = s
	} else {
		logger.Warn("store.intake_url not set; sync routes disabled")
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(recoverPanics(logger))
	r.Use(requestLog(logger))
	r.Use(metrics.Middleware())
	a.server(syncer).Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       config.Seconds(cfg.HTTP.ReadTimeoutSec),
		ReadHeaderTimeout: config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	if syncer != nil && interval > 0 {
		logger.Info("Periodic sync enabled", zap.Duration("interval", interval))
		go syncer.RunPeriodic(ctx, interval)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
