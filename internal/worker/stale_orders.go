package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"orderflow/internal/model"
)

const MetricStalePending = "stale_pending_orders"

// StaleLister finds orders still pending since before cutoff.
type StaleLister interface {
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
}

type GaugeSetter interface {
	SetGauge(name string, value float64)
}

// StaleOrderWorker reports orders that stayed pending past the grace
// period. It only observes; it never changes an order.
type StaleOrderWorker struct {
	orders    StaleLister
	gauge     GaugeSetter
	grace     time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewStaleOrderWorker(orders StaleLister, gauge GaugeSetter, grace, interval time.Duration) *StaleOrderWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StaleOrderWorker{
		orders:    orders,
		gauge:     gauge,
		grace:     grace,
		interval:  interval,
		batchSize: 100,
		now:       time.Now,
	}
}

func (w *StaleOrderWorker) Start(ctx context.Context) {
	slog.Info("starting stale order worker", "grace", w.grace, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stale order worker stopped")
			return
		case <-ticker.C:
			if _, err := w.scan(ctx); err != nil {
				slog.Error("stale order scan failed", "error", err)
			}
		}
	}
}

func (w *StaleOrderWorker) scan(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.grace)
	orders, err := w.orders.ListStale(ctx, cutoff, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	for _, order := range orders {
		slog.Warn("order still pending",
			"order_id", order.ID,
			"created_at", order.CreatedAt,
			"age", w.now().Sub(order.CreatedAt).Round(time.Second),
		)
	}
	w.gauge.SetGauge(MetricStalePending, float64(len(orders)))
	return len(orders), nil
}
