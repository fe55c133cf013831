package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"orderflow/internal/gateway"
	"orderflow/internal/metrics"
)

const (
	MetricPaymentsTotal   = "payments_total"
	MetricPaymentDuration = "payment_processing_duration_seconds"
)

type paymentStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// ProcessPaymentHandler authorizes one payment: 200 when approved, 402 when
// declined.
func ProcessPaymentHandler(payments gateway.Authorizer, sink metrics.Sink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req gateway.PaymentRequest
		if err := decodeJSON(w, r, &req); err != nil || req.OrderID == nil || req.Amount == "" {
			countPayment(sink, "invalid")
			writeError(w, http.StatusBadRequest, "Missing required fields")
			return
		}
		amount, err := decimal.NewFromString(req.Amount.String())
		if err != nil {
			countPayment(sink, "invalid")
			writeError(w, http.StatusBadRequest, "Amount must be a number")
			return
		}

		res, err := payments.Authorize(r.Context(), gateway.Request{
			OrderID:  *req.OrderID,
			Amount:   amount,
			Customer: req.Customer,
		})
		if err != nil {
			countPayment(sink, "error")
			slog.Error("payment failed", "order_id", *req.OrderID, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		elapsed := time.Since(start).Seconds()
		sink.ObserveDuration(MetricPaymentDuration, elapsed)

		if !res.Approved {
			countPayment(sink, "failed")
			reason := res.Reason
			if reason == "" {
				reason = gateway.DeclineReason
			}
			writeJSON(w, http.StatusPaymentRequired, gateway.PaymentResponse{
				Status:         gateway.PaymentFailed,
				OrderID:        *req.OrderID,
				Reason:         reason,
				ProcessingTime: elapsed,
			})
			return
		}

		countPayment(sink, "success")
		writeJSON(w, http.StatusOK, gateway.PaymentResponse{
			Status:         gateway.PaymentCompleted,
			OrderID:        *req.OrderID,
			TransactionID:  res.TransactionID,
			ProcessingTime: elapsed,
		})
	}
}

// PaymentStatusHandler reports a transaction as completed; only approved
// payments are ever issued a transaction id.
func PaymentStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, paymentStatusResponse{
			TransactionID: chi.URLParam(r, "transactionId"),
			Status:        gateway.PaymentCompleted,
		})
	}
}

func countPayment(sink metrics.Sink, status string) {
	sink.IncrementCounter(MetricPaymentsTotal, map[string]string{"status": status})
}
