package gateway

import "encoding/json"

// PaymentRequest is the body of POST /payments.
type PaymentRequest struct {
	OrderID  *int64      `json:"order_id"`
	Amount   json.Number `json:"amount"`
	Customer string      `json:"customer"`
}

// PaymentResponse is returned by POST /payments with 200 or 402.
type PaymentResponse struct {
	Status         string  `json:"status"`
	OrderID        int64   `json:"order_id"`
	TransactionID  string  `json:"transaction_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
}

const (
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)
