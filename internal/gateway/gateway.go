// Package gateway is the payment authorization boundary of the order saga.
// Latency, declines, timeouts and transport failures are all ordinary
// outcomes of Authorize; callers must never assume approval.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrTimeout means the gateway did not answer before the deadline.
	ErrTimeout = errors.New("payment gateway timeout")
	// ErrGateway covers every other failure to obtain an answer.
	ErrGateway = errors.New("payment gateway error")
)

const DeclineReason = "Payment gateway declined"

type Request struct {
	OrderID  int64
	Amount   decimal.Decimal
	Customer string
}

// Result is a definitive answer from the gateway. A declined payment is a
// Result with Approved false, not an error.
type Result struct {
	Approved      bool
	TransactionID string
	Reason        string
}

// Authorizer authorizes a payment. The deadline is carried by ctx.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (Result, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, req Request) (Result, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
