package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"venue-discovery/internal/constants"
	"venue-discovery/pkg/config"
	"venue-discovery/pkg/logging"
	"venue-discovery/pkg/metrics"
	"venue-discovery/pkg/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recommendation HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		cfg.Port = p
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg, "stdout")
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("shutdown cleanup failed", err)
		}
	}()
	app.StartBackground()
	monitoring.EnableProfiling(cfg.ProfilingEnabled)

	cw := config.NewWatcher(time.Duration(cfg.ConfigReloadIntervalSeconds) * time.Second)
	cw.Start()
	defer cw.Close()
	go func() {
		for chg := range cw.Subscribe() {
			if chg.Err != nil {
				log.Warn("config reload failed", logging.String("error", chg.Err.Error()))
				continue
			}
			app.ApplyConfig(chg.New)
			log.Info("config applied", logging.Strings("fields", chg.Fields))
		}
	}()

	router := mux.NewRouter()
	var reqMetrics *monitoring.Metrics
	if cfg.MetricsEnabled {
		reqMetrics = monitoring.NewMetrics(512)
		router.Use(monitoring.Middleware(reqMetrics))
	}
	app.API.Register(router)
	app.Health.Register(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var adminServer *http.Server
	if cfg.ProfilingEnabled || cfg.MetricsEnabled {
		sm := http.NewServeMux()
		if cfg.ProfilingEnabled {
			monitoring.RegisterPprof(sm)
		}
		if cfg.MetricsEnabled {
			sm.Handle(cfg.MetricsPath, metrics.Handler())
			if cfg.MetricsPath != "/metrics.json" {
				sm.Handle("/metrics.json", monitoring.MetricsHandler(reqMetrics, func() any {
					return app.Service.Engine().GetStats()
				}))
			}
		}
		adminServer = &http.Server{Addr: ":" + cfg.AdminPort, Handler: sm, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Info("admin server starting", logging.String("port", cfg.AdminPort))
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("admin server failed", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", logging.String("port", cfg.Port), logging.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeoutDefault)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Error("admin server shutdown failed", err)
		}
	}
	log.Info("shutdown complete")
	return nil
}
