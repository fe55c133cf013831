package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"orderflow/internal/gateway"
	"orderflow/internal/metrics"
	"orderflow/internal/mw"
	"orderflow/internal/service"
)

// NewOrdersRouter serves the order API. When jwtSecret is set, the /orders
// routes require a bearer token; probes and metrics stay public.
func NewOrdersRouter(orderSvc *service.OrderService, registry *metrics.Registry, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", HealthHandler("order-service"))
	r.Get("/ready", ReadyHandler(orderSvc))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	r.Group(func(r chi.Router) {
		if jwtSecret != "" {
			r.Use(mw.AuthMiddleware(jwtSecret))
		}

		r.Post("/orders", CreateOrderHandler(orderSvc))
		r.Get("/orders", ListOrdersHandler(orderSvc))
		r.Get("/orders/{id}", GetOrderHandler(orderSvc))
	})

	return r
}

// NewPaymentsRouter serves the payment service.
func NewPaymentsRouter(payments gateway.Authorizer, registry *metrics.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", HealthHandler("payment-service"))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	r.Post("/payments", ProcessPaymentHandler(payments, registry))
	r.Get("/payments/{transactionId}", PaymentStatusHandler())

	return r
}
