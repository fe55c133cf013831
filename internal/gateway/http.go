package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"orderflow/internal/model"
)

// HTTPClient talks to the payment service over POST /payments.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPClient) Authorize(ctx context.Context, req Request) (Result, error) {
	orderID := req.OrderID
	body, err := json.Marshal(PaymentRequest{
		OrderID:  &orderID,
		Amount:   json.Number(req.Amount.StringFixed(model.AmountScale)),
		Customer: req.Customer,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode request: %v", ErrGateway, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: create request: %v", ErrGateway, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := middleware.GetReqID(ctx); id != "" {
		httpReq.Header.Set(middleware.RequestIDHeader, id)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return Result{}, fmt.Errorf("%w: do request: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPaymentRequired:
		var payload PaymentResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			if isTimeout(err) {
				return Result{}, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return Result{}, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
		}
		if resp.StatusCode == http.StatusOK && payload.Status == PaymentCompleted {
			return Result{Approved: true, TransactionID: payload.TransactionID}, nil
		}
		reason := payload.Reason
		if reason == "" {
			reason = DeclineReason
		}
		return Result{Approved: false, Reason: reason}, nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("%w: unexpected status %d: %s", ErrGateway, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
