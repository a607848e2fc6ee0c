package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cryptonow/paygate"
	"github.com/cryptonow/paygate/config"
	"github.com/cryptonow/paygate/logger"
	"github.com/cryptonow/paygate/metrics"
	"github.com/cryptonow/paygate/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog := logger.NewZapLogger(cfg.LogLevel, cfg.LogFormat)

	opts := []paygate.Option{paygate.WithLogger(zlog)}
	if cfg.MetricsEnabled {
		opts = append(opts, paygate.WithMetrics(metrics.NewPrometheusRecorder()))
	}
	svc, err := paygate.New(cfg, opts...)
	if err != nil {
		log.Fatalf("init gateway: %v", err)
	}

	srvOpts := []server.Option{server.WithLogger(zlog)}
	if cfg.MetricsEnabled {
		srvOpts = append(srvOpts, server.WithMetricsEndpoint())
	}
	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.New(svc, srvOpts...).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go svc.RunSweeper(stopCtx, cfg.SweepInterval)

	errs := make(chan error, 1)
	go func() {
		zlog.Info("payment gateway listening", map[string]any{
			"address":   cfg.ListenAddress,
			"endpoints": svc.Endpoints(),
			"version":   paygate.Version,
		})
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		zlog.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			zlog.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
		}
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			zlog.Error("server stopped", map[string]any{"error": err.Error()})
		}
	}
}
