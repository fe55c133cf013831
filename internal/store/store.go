// Package store persists orders. Every order moves through exactly two
// writes: InsertPending creates it as pending/pending and UpdateOutcome moves
// it, once, to a terminal payment status.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"orderflow/internal/model"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrAlreadyFinal      = errors.New("order already has a terminal status")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// NewOrder is the caller-supplied part of an order.
type NewOrder struct {
	CustomerName string
	Product      string
	Amount       decimal.Decimal
}

// OrderStore is the durable keyed record of orders.
type OrderStore interface {
	// InsertPending stores a new pending order and returns it with its
	// assigned id and creation time.
	InsertPending(ctx context.Context, o NewOrder) (model.Order, error)
	// UpdateOutcome finalizes a pending order. It returns ErrNotFound for an
	// unknown id and ErrAlreadyFinal if the order was finalized before.
	UpdateOutcome(ctx context.Context, id int64, ps model.PaymentStatus) (model.Order, error)
	Get(ctx context.Context, id int64) (model.Order, error)
	// List returns up to limit orders, newest first.
	List(ctx context.Context, limit int) ([]model.Order, error)
	// ListStale returns orders still pending that were created before cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
	Ping(ctx context.Context) error
}

func checkTransition(ps model.PaymentStatus) error {
	if !ps.Terminal() {
		return fmt.Errorf("%w: %q is not terminal", ErrInvalidTransition, ps)
	}
	return nil
}
