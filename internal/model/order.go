package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusTimeout   PaymentStatus = "timeout"
	PaymentStatusError     PaymentStatus = "error"
)

// AmountScale is the number of fractional digits kept for order amounts.
const AmountScale = 2

// MaxAmount is the largest amount a NUMERIC(10,2) column can hold.
var MaxAmount = decimal.RequireFromString("99999999.99")

// Terminal reports whether the payment status is a final outcome.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusTimeout, PaymentStatusError:
		return true
	}
	return false
}

// StatusFor derives the order status from its payment status.
// An order is completed only when its payment completed.
func StatusFor(ps PaymentStatus) OrderStatus {
	switch ps {
	case PaymentStatusPending:
		return OrderStatusPending
	case PaymentStatusCompleted:
		return OrderStatusCompleted
	default:
		return OrderStatusFailed
	}
}

type Order struct {
	ID            int64
	CustomerName  string
	Product       string
	Amount        decimal.Decimal
	Status        OrderStatus
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}

type orderJSON struct {
	ID            int64         `json:"id"`
	CustomerName  string        `json:"customer_name"`
	Product       string        `json:"product"`
	Amount        json.Number   `json:"amount"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     *string       `json:"created_at"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	out := orderJSON{
		ID:            o.ID,
		CustomerName:  o.CustomerName,
		Product:       o.Product,
		Amount:        json.Number(o.Amount.StringFixed(AmountScale)),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	}
	if !o.CreatedAt.IsZero() {
		ts := o.CreatedAt.UTC().Format(time.RFC3339Nano)
		out.CreatedAt = &ts
	}
	return json.Marshal(out)
}

func (o *Order) UnmarshalJSON(data []byte) error {
	var in orderJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(in.Amount.String())
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}

	var createdAt time.Time
	if in.CreatedAt != nil {
		createdAt, err = time.Parse(time.RFC3339Nano, *in.CreatedAt)
		if err != nil {
			return fmt.Errorf("parse created_at: %w", err)
		}
	}

	*o = Order{
		ID:            in.ID,
		CustomerName:  in.CustomerName,
		Product:       in.Product,
		Amount:        amount,
		Status:        in.Status,
		PaymentStatus: in.PaymentStatus,
		CreatedAt:     createdAt,
	}
	return nil
}
