package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/config"
	"orderflow/internal/database"
	"orderflow/internal/gateway"
	"orderflow/internal/handler"
	"orderflow/internal/metrics"
	"orderflow/internal/mw"
	"orderflow/internal/service"
	"orderflow/internal/store"
	"orderflow/internal/worker"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.NewOrders(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.Log))

	if cfg.IssueToken != "" {
		token, err := mw.IssueToken(cfg.JWTSecret, cfg.IssueToken, 365*24*time.Hour)
		if err != nil {
			slog.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("order service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.OrdersConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	registry.RegisterHistogram(service.MetricOrderDuration, service.DurationBuckets)

	// Store
	var orders store.OrderStore
	if cfg.DatabaseURI == "" {
		slog.Warn("DATABASE_URI not set, orders are kept in memory")
		orders = store.NewMemoryStore()
	} else {
		db, err := database.NewDB(ctx, cfg.DatabaseURI)
		if err != nil {
			return err
		}
		defer database.CloseDB(db)

		if err := database.InitSchema(ctx, db); err != nil {
			return err
		}
		orders = store.NewPostgresStore(db)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close redis", "error", err)
			}
		}()
		orders = store.NewCachedStore(orders, rdb, cfg.OrderCacheTTL)
		slog.Info("order cache enabled", "ttl", cfg.OrderCacheTTL)
	}

	// Payments
	var payments gateway.Authorizer
	if cfg.PaymentServiceURL == "" {
		simCfg := gateway.DefaultSimulatorConfig()
		simCfg.Seed = cfg.SimulatorSeed
		payments = gateway.NewSimulator(simCfg, registry)
		slog.Info("using in-process payment simulator", "seed", cfg.SimulatorSeed)
	} else {
		payments = gateway.NewHTTPClient(cfg.PaymentServiceURL, &http.Client{})
		slog.Info("using payment service", "url", cfg.PaymentServiceURL)
	}

	orderSvc := service.NewOrderService(orders, payments,
		service.WithMetrics(registry),
		service.WithPaymentTimeout(cfg.PaymentTimeout),
	)
	registry.GaugeFunc(service.MetricActiveOrders, func() float64 {
		return float64(orderSvc.ActiveOrders())
	})

	staleWorker := worker.NewStaleOrderWorker(orders, registry, cfg.StaleOrderGrace, cfg.StaleOrderInterval)

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      handler.NewOrdersRouter(orderSvc, registry, cfg.JWTSecret),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.PaymentTimeout + 10*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		staleWorker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("starting server", "addr", cfg.RunAddress)
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
