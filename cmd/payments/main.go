package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"orderflow/internal/config"
	"orderflow/internal/gateway"
	"orderflow/internal/handler"
	"orderflow/internal/metrics"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.NewPayments(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.Log))

	if err := run(cfg); err != nil {
		slog.Error("payment service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.PaymentsConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	registry.RegisterHistogram(handler.MetricPaymentDuration, metrics.DefaultBuckets)

	simulator := gateway.NewSimulator(gateway.SimulatorConfig{
		Seed:               cfg.SimulatorSeed,
		GatewayFailureRate: cfg.GatewayFailureRate,
		DeclineRate:        cfg.DeclineRate,
		MinLatency:         cfg.MinLatency,
		MaxLatency:         cfg.MaxLatency,
	}, registry)

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      handler.NewPaymentsRouter(simulator, registry),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.MaxLatency + 10*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting payment service",
			"addr", cfg.RunAddress,
			"seed", cfg.SimulatorSeed,
			"decline_rate", cfg.DeclineRate,
			"gateway_failure_rate", cfg.GatewayFailureRate,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		ctxShut, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctxShut)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
