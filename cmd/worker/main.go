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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/telehealth-admin/internal/app"
	"github.com/jwalitptl/telehealth-admin/internal/config"
	"github.com/jwalitptl/telehealth-admin/internal/model"
	"github.com/jwalitptl/telehealth-admin/internal/repository"
	"github.com/jwalitptl/telehealth-admin/internal/worker"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

func setupHealthCheck(addr string, store repository.DocumentStore, reg prometheus.Gatherer, l *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
	return srv
}

func main() {
	var (
		configPath string
		healthAddr string
		once       bool
	)
	cmd := &cobra.Command{
		Use:           "telehealth-worker",
		Short:         "Purge monitoring data past its retention period",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, healthAddr, once)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file")
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "address of the health and metrics endpoints")
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")

	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Worker failed")
	}
}

func run(configPath, healthAddr string, once bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	}).With("worker")
	log.Logger = l.ZL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// no cache in front of the store: the worker only deletes
	cfg.Store.CacheTTL = -1
	reg, m := app.NewMetrics()
	store, err := app.OpenStore(ctx, cfg, l, m)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	targets := []worker.Purger{
		repository.NewCollection[model.MonitoringEvent](store, model.CollectionMonitoringEvents, repository.WithMetrics(m)),
		repository.NewCollection[model.PerformanceMetric](store, model.CollectionPerformanceMetrics, repository.WithMetrics(m)),
	}
	retention, err := worker.NewRetentionWorker(targets, cfg.Monitoring.RetentionDays, cfg.Monitoring.SweepInterval, l)
	if err != nil {
		return fmt.Errorf("invalid retention settings: %w", err)
	}

	if once {
		if _, err := retention.Sweep(ctx); err != nil {
			return fmt.Errorf("retention sweep failed: %w", err)
		}
		return nil
	}

	srv := setupHealthCheck(healthAddr, store, reg, l)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		l.Info("Shutting down...")
		cancel()
	}()

	l.Info("Retention worker started", "retention_days", cfg.Monitoring.RetentionDays, "interval", cfg.Monitoring.SweepInterval.String())
	retention.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}
