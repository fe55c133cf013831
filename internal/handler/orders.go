package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"orderflow/internal/model"
	"orderflow/internal/service"
)

type createOrderRequest struct {
	CustomerName string           `json:"customer_name"`
	Product      string           `json:"product"`
	Amount       *decimal.Decimal `json:"amount"`
}

type createOrderResponse struct {
	OrderID        int64               `json:"order_id"`
	Status         model.OrderStatus   `json:"status"`
	PaymentStatus  model.PaymentStatus `json:"payment_status"`
	ProcessingTime float64             `json:"processing_time"`
	TransactionID  string              `json:"transaction_id,omitempty"`
}

type listOrdersResponse struct {
	Orders []model.Order `json:"orders"`
}

// CreateOrderHandler places an order and answers 201 when the payment
// completed, 500 with the same body when it did not.
func CreateOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Amount == nil {
			writeError(w, http.StatusBadRequest, service.MsgMissingFields)
			return
		}

		res, err := orderSvc.PlaceOrder(r.Context(), service.OrderRequest{
			CustomerName: req.CustomerName,
			Product:      req.Product,
			Amount:       *req.Amount,
		})
		if err != nil {
			var verr *service.ValidationError
			switch {
			case errors.As(err, &verr):
				writeError(w, http.StatusBadRequest, verr.Message)
			case errors.Is(err, service.ErrStoreUnavailable):
				writeError(w, http.StatusInternalServerError, "order store unavailable")
			default:
				slog.Error("place order failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		status := http.StatusInternalServerError
		if res.Status == model.OrderStatusCompleted {
			status = http.StatusCreated
		}
		writeJSON(w, status, createOrderResponse{
			OrderID:        res.OrderID,
			Status:         res.Status,
			PaymentStatus:  res.PaymentStatus,
			ProcessingTime: res.Elapsed.Seconds(),
			TransactionID:  res.TransactionID,
		})
	}
}

func ListOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := service.MaxListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
			limit = n
		}

		orders, err := orderSvc.ListOrders(r.Context(), limit)
		if err != nil {
			slog.Error("list orders failed", "error", err)
			writeError(w, http.StatusInternalServerError, "order store unavailable")
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}
		writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
	}
}

func GetOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "Order not found")
			return
		}

		order, err := orderSvc.GetOrder(r.Context(), id)
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "Order not found")
		case err != nil:
			slog.Error("get order failed", "order_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "order store unavailable")
		default:
			writeJSON(w, http.StatusOK, order)
		}
	}
}
