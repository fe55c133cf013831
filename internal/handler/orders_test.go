package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/gateway"
	"orderflow/internal/metrics"
	"orderflow/internal/model"
	"orderflow/internal/mw"
	"orderflow/internal/service"
	"orderflow/internal/store"
)

const macbookBody = `{"customer_name":"Jan de Vries","product":"MacBook Pro","amount":1999.00}`

// downStore fails every write and ping, like a database that went away.
type downStore struct {
	*store.MemoryStore
}

var errDown = errors.New("connection refused")

func (downStore) InsertPending(context.Context, store.NewOrder) (model.Order, error) {
	return model.Order{}, errDown
}

func (downStore) Ping(context.Context) error { return errDown }

func newOrdersServer(t *testing.T, st store.OrderStore, payments gateway.Authorizer, jwtSecret string) (*httptest.Server, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	svc := service.NewOrderService(st, payments,
		service.WithMetrics(reg),
		service.WithPaymentTimeout(50*time.Millisecond),
	)
	srv := httptest.NewServer(NewOrdersRouter(svc, reg, jwtSecret))
	t.Cleanup(srv.Close)
	return srv, reg
}

func postOrder(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+"/orders", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestCreateOrderHandler_Outcomes(t *testing.T) {
	tests := []struct {
		name              string
		payments          gateway.Authorizer
		wantCode          int
		wantStatus        string
		wantPaymentStatus string
	}{
		{name: "approved", payments: gateway.Approve(), wantCode: http.StatusCreated, wantStatus: "completed", wantPaymentStatus: "completed"},
		{name: "declined", payments: gateway.Decline(), wantCode: http.StatusInternalServerError, wantStatus: "failed", wantPaymentStatus: "failed"},
		{name: "deadline", payments: gateway.Hang(time.Minute), wantCode: http.StatusInternalServerError, wantStatus: "failed", wantPaymentStatus: "timeout"},
		{name: "gateway error", payments: gateway.Fail(errors.New("boom")), wantCode: http.StatusInternalServerError, wantStatus: "failed", wantPaymentStatus: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newOrdersServer(t, store.NewMemoryStore(), tt.payments, "")

			resp, payload := postOrder(t, srv.URL, macbookBody)

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantStatus, payload["status"])
			assert.Equal(t, tt.wantPaymentStatus, payload["payment_status"])
			assert.NotZero(t, payload["order_id"])
			assert.Contains(t, payload, "processing_time")
		})
	}
}

func TestCreateOrderHandler_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "empty customer", body: `{"customer_name":"","product":"iPhone 15","amount":500}`, wantErr: "Missing required fields"},
		{name: "missing product", body: `{"customer_name":"Jan","amount":500}`, wantErr: "Missing required fields"},
		{name: "missing amount", body: `{"customer_name":"Jan","product":"iPhone 15"}`, wantErr: "Missing required fields"},
		{name: "negative amount", body: `{"customer_name":"Jan","product":"iPhone 15","amount":-1}`, wantErr: "Amount must be a positive number"},
		{name: "amount not a number", body: `{"customer_name":"Jan","product":"iPhone 15","amount":"abc"}`, wantErr: "invalid request body"},
		{name: "malformed json", body: `{"customer_name":`, wantErr: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			srv, _ := newOrdersServer(t, st, gateway.Approve(), "")

			resp, payload := postOrder(t, srv.URL, tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, map[string]any{"error": tt.wantErr}, payload)

			orders, err := st.List(context.Background(), 100)
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestCreateOrderHandler_StoreUnavailable(t *testing.T) {
	srv, reg := newOrdersServer(t, downStore{store.NewMemoryStore()}, gateway.Approve(), "")

	resp, payload := postOrder(t, srv.URL, macbookBody)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, map[string]any{"error": "order store unavailable"}, payload)
	assert.Equal(t, uint64(1), reg.Counter(service.MetricDatabaseErrors, nil))
}

func TestGetOrderHandler_MatchesPlacedOrder(t *testing.T) {
	srv, _ := newOrdersServer(t, store.NewMemoryStore(), gateway.Approve(), "")

	_, placed := postOrder(t, srv.URL, macbookBody)
	id := int64(placed["order_id"].(float64))

	resp, err := http.Get(fmt.Sprintf("%s/orders/%d", srv.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order model.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, id, order.ID)
	assert.Equal(t, "Jan de Vries", order.CustomerName)
	assert.Equal(t, "MacBook Pro", order.Product)
	assert.Equal(t, "1999.00", order.Amount.StringFixed(2))
	assert.Equal(t, placed["status"], string(order.Status))
	assert.Equal(t, placed["payment_status"], string(order.PaymentStatus))
	assert.False(t, order.CreatedAt.IsZero())
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	srv, _ := newOrdersServer(t, store.NewMemoryStore(), gateway.Approve(), "")

	for _, path := range []string{"/orders/999", "/orders/abc"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, "Order not found", payload["error"])
	}
}

func TestListOrdersHandler(t *testing.T) {
	st := store.NewMemoryStore()
	srv, _ := newOrdersServer(t, st, gateway.Approve(), "")

	resp, err := http.Get(srv.URL + "/orders")
	require.NoError(t, err)
	body := map[string]json.RawMessage{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.JSONEq(t, `[]`, string(body["orders"]))

	for i := 0; i < 3; i++ {
		postOrder(t, srv.URL, macbookBody)
	}

	resp, err = http.Get(srv.URL + "/orders?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Orders []model.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Orders, 2)
	assert.Greater(t, list.Orders[0].ID, list.Orders[1].ID)
}

func TestListOrdersHandler_BadLimit(t *testing.T) {
	srv, _ := newOrdersServer(t, store.NewMemoryStore(), gateway.Approve(), "")

	resp, err := http.Get(srv.URL + "/orders?limit=ten")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrdersRouter_Probes(t *testing.T) {
	srv, _ := newOrdersServer(t, store.NewMemoryStore(), gateway.Approve(), "")
	down, _ := newOrdersServer(t, downStore{store.NewMemoryStore()}, gateway.Approve(), "")

	tests := []struct {
		name     string
		url      string
		wantCode int
		wantBody string
	}{
		{name: "health", url: srv.URL + "/health", wantCode: http.StatusOK, wantBody: `{"status":"healthy","service":"order-service"}`},
		{name: "ready", url: srv.URL + "/ready", wantCode: http.StatusOK, wantBody: `{"status":"ready"}`},
		{name: "not ready", url: down.URL + "/ready", wantCode: http.StatusServiceUnavailable, wantBody: `{"status":"not ready"}`},
		{name: "health while store down", url: down.URL + "/health", wantCode: http.StatusOK, wantBody: `{"status":"healthy","service":"order-service"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(tt.url)
			require.NoError(t, err)
			defer resp.Body.Close()

			var got json.RawMessage
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(got))
		})
	}
}

func TestOrdersRouter_Metrics(t *testing.T) {
	srv, _ := newOrdersServer(t, store.NewMemoryStore(), gateway.Approve(), "")
	postOrder(t, srv.URL, macbookBody)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, uint64(1), snap.Histograms[service.MetricOrderDuration].Count)
	require.Len(t, snap.Counters, 1)
	assert.Equal(t, service.MetricOrdersTotal, snap.Counters[0].Name)
	assert.Equal(t, map[string]string{"status": "completed", "payment_status": "completed"}, snap.Counters[0].Labels)
}

func TestOrdersRouter_Auth(t *testing.T) {
	const secret = "router-secret"
	srv, _ := newOrdersServer(t, store.NewMemoryStore(), gateway.Approve(), secret)

	resp, err := http.Get(srv.URL + "/orders")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	token, err := mw.IssueToken(secret, "ingress-router", time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/orders", strings.NewReader(macbookBody))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
