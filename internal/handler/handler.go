// Package handler serves the order log over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/orderlog/internal/domain/order"
)

// DefaultMaxBodyBytes caps submission bodies.
const DefaultMaxBodyBytes = 1 << 20

// OrderService is the order log as seen by HTTP handlers.
type OrderService interface {
	List(ctx context.Context) ([]order.Record, error)
	Accept(ctx context.Context, kind order.Kind, payload []byte) (*order.Record, error)
}

var _ OrderService = (*order.Service)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes limits the size of submission bodies. Zero means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Handler routes order log requests to the order service.
type Handler struct {
	orders       OrderService
	maxBodyBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, orders OrderService) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		orders:       orders,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Route is a single endpoint.
type Route struct {
	// Pattern is a net/http ServeMux pattern including the method.
	Pattern string
	// Name identifies the operation in logs and telemetry.
	Name    string
	Handler http.Handler
}

// Routes lists every order endpoint.
func (h *Handler) Routes() []Route {
	return []Route{
		{Pattern: "GET /api/customer-orders", Name: "listOrders", Handler: http.HandlerFunc(h.ListOrders)},
		{Pattern: "POST /api/customer-orders", Name: "placeOrder", Handler: http.HandlerFunc(h.PlaceOrder)},
		{Pattern: "POST /api/single-order", Name: "placeSingleOrder", Handler: http.HandlerFunc(h.PlaceSingleOrder)},
	}
}

// Register adds every route to mux, passing each handler through wrap when
// it is not nil.
func (h *Handler) Register(mux *http.ServeMux, wrap func(Route) http.Handler) {
	for _, r := range h.Routes() {
		next := r.Handler
		if wrap != nil {
			next = wrap(r)
		}
		mux.Handle(r.Pattern, next)
	}
}
