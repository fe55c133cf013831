package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"orderflow/internal/gateway"
	"orderflow/internal/metrics"
	"orderflow/internal/model"
	"orderflow/internal/store"
)

const (
	MetricOrdersTotal    = "orders_total"
	MetricOrderDuration  = "order_processing_duration_seconds"
	MetricDatabaseErrors = "database_errors_total"
	MetricActiveOrders   = "active_orders"

	DefaultPaymentTimeout  = 5 * time.Second
	DefaultFinalizeTimeout = 5 * time.Second
	MaxListLimit           = 100
)

// DurationBuckets are the histogram bounds for MetricOrderDuration.
var DurationBuckets = []float64{0.1, 0.5, 1, 2, 5}

type OrderRequest struct {
	CustomerName string
	Product      string
	Amount       decimal.Decimal
}

type OrderResult struct {
	OrderID       int64
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	TransactionID string
	Elapsed       time.Duration
}

type OrderService struct {
	store           store.OrderStore
	payments        gateway.Authorizer
	metrics         metrics.Sink
	paymentTimeout  time.Duration
	finalizeTimeout time.Duration
	active          atomic.Int64
}

type Option func(*OrderService)

func WithMetrics(sink metrics.Sink) Option {
	return func(s *OrderService) {
		if sink != nil {
			s.metrics = sink
		}
	}
}

func WithPaymentTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.paymentTimeout = d
		}
	}
}

// WithFinalizeTimeout bounds the write that records the payment outcome.
func WithFinalizeTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.finalizeTimeout = d
		}
	}
}

func NewOrderService(st store.OrderStore, payments gateway.Authorizer, opts ...Option) *OrderService {
	s := &OrderService{
		store:           st,
		payments:        payments,
		metrics:         metrics.Nop{},
		paymentTimeout:  DefaultPaymentTimeout,
		finalizeTimeout: DefaultFinalizeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder runs the fulfillment saga: persist a pending order, make a
// single payment attempt under the payment timeout, and record the outcome.
//
// Once the order is stored it is always finalized before PlaceOrder
// returns, whatever the gateway did. The only exception is a failing store
// write, reported as ErrStoreUnavailable alongside the computed result.
func (s *OrderService) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	start := time.Now()

	amount, err := validate(req)
	if err != nil {
		s.countOrder(model.OrderStatusFailed, "none")
		return OrderResult{}, err
	}

	order, err := s.store.InsertPending(ctx, store.NewOrder{
		CustomerName: req.CustomerName,
		Product:      req.Product,
		Amount:       amount,
	})
	if err != nil {
		s.metrics.IncrementCounter(MetricDatabaseErrors, nil)
		s.countOrder("error", "error")
		slog.Error("order create failed", "error", err)
		return OrderResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.active.Add(1)
	defer s.active.Add(-1)

	ps, res := s.authorize(ctx, order)

	final, err := s.finalize(ctx, order.ID, ps)
	result := OrderResult{
		OrderID:       order.ID,
		Status:        final.Status,
		PaymentStatus: final.PaymentStatus,
		Elapsed:       time.Since(start),
	}
	if final.PaymentStatus == model.PaymentStatusCompleted {
		result.TransactionID = res.TransactionID
	}

	s.metrics.ObserveDuration(MetricOrderDuration, result.Elapsed.Seconds())
	if err != nil {
		s.metrics.IncrementCounter(MetricDatabaseErrors, nil)
		s.countOrder("error", "error")
		slog.Error("order finalize failed", "order_id", order.ID, "payment_status", ps, "error", err)
		return result, fmt.Errorf("%w: finalize order %d: %v", ErrStoreUnavailable, order.ID, err)
	}
	s.countOrder(result.Status, string(result.PaymentStatus))

	slog.Info("order processed",
		"order_id", result.OrderID,
		"status", result.Status,
		"payment_status", result.PaymentStatus,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

type authorization struct {
	res gateway.Result
	err error
}

// authorize makes the payment call under the payment timeout. On expiry it
// returns without waiting; a late answer lands in the buffered channel and
// is dropped.
func (s *OrderService) authorize(ctx context.Context, order model.Order) (model.PaymentStatus, gateway.Result) {
	callCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	done := make(chan authorization, 1)
	go func() {
		res, err := s.payments.Authorize(callCtx, gateway.Request{
			OrderID:  order.ID,
			Amount:   order.Amount,
			Customer: order.CustomerName,
		})
		done <- authorization{res: res, err: err}
	}()

	select {
	case a := <-done:
		ps := classify(a.res, a.err)
		if a.err != nil {
			slog.Warn("payment failed", "order_id", order.ID, "payment_status", ps, "error", a.err)
		}
		return ps, a.res
	case <-callCtx.Done():
		ps := classify(gateway.Result{}, callCtx.Err())
		slog.Warn("payment abandoned", "order_id", order.ID, "payment_status", ps, "error", callCtx.Err())
		return ps, gateway.Result{}
	}
}

func classify(res gateway.Result, err error) model.PaymentStatus {
	switch {
	case err == nil && res.Approved:
		return model.PaymentStatusCompleted
	case err == nil:
		return model.PaymentStatusFailed
	case errors.Is(err, gateway.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return model.PaymentStatusTimeout
	default:
		return model.PaymentStatusError
	}
}

// finalize records the outcome. It runs detached from the caller's
// cancellation so a disconnected client cannot leave the order pending.
func (s *OrderService) finalize(ctx context.Context, id int64, ps model.PaymentStatus) (model.Order, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.finalizeTimeout)
	defer cancel()

	order, err := s.store.UpdateOutcome(ctx, id, ps)
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, store.ErrAlreadyFinal):
		slog.Warn("order already finalized", "order_id", id, "payment_status", order.PaymentStatus, "discarded", ps)
		return order, nil
	default:
		return model.Order{ID: id, Status: model.StatusFor(ps), PaymentStatus: ps}, err
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Order{}, ErrOrderNotFound
		}
		s.metrics.IncrementCounter(MetricDatabaseErrors, nil)
		return model.Order{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return order, nil
}

// ListOrders returns the most recent orders, newest first. limit is clamped
// to [1, MaxListLimit].
func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	orders, err := s.store.List(ctx, limit)
	if err != nil {
		s.metrics.IncrementCounter(MetricDatabaseErrors, nil)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return orders, nil
}

// Ready reports whether the order store is reachable.
func (s *OrderService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ActiveOrders is the number of sagas currently in flight.
func (s *OrderService) ActiveOrders() int64 {
	return s.active.Load()
}

func (s *OrderService) countOrder(status model.OrderStatus, paymentStatus string) {
	s.metrics.IncrementCounter(MetricOrdersTotal, map[string]string{
		"status":         string(status),
		"payment_status": paymentStatus,
	})
}

func validate(req OrderRequest) (decimal.Decimal, error) {
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.Product) == "" {
		return decimal.Decimal{}, &ValidationError{Message: MsgMissingFields}
	}
	amount := req.Amount.Round(model.AmountScale)
	if !amount.IsPositive() {
		return decimal.Decimal{}, &ValidationError{Message: MsgInvalidAmount}
	}
	if amount.GreaterThan(model.MaxAmount) {
		return decimal.Decimal{}, &ValidationError{Message: MsgAmountTooLarge}
	}
	return amount, nil
}
