// Package handler serves the storefront pages, the JSON endpoints and the
// admin back office.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tortilla-storefront/internal/domain/order"
	"github.com/xenking/tortilla-storefront/internal/domain/product"
	"github.com/xenking/tortilla-storefront/pkg/httpmiddleware"
)

// OrderService is the subset of *order.Service used by the handlers.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Receipt, error)

	RecordPayment(ctx context.Context, id int64, amount decimal.Decimal) (*order.Order, error)
	AdjustDeliveryFee(ctx context.Context, id int64, fee decimal.Decimal) (*order.Order, error)
	ApplyDiscount(ctx context.Context, id int64, amount decimal.Decimal) (*order.Order, error)
	CancelDiscount(ctx context.Context, id int64) (*order.Order, error)
	Close(ctx context.Context, id int64) (*order.Order, error)
	Reopen(ctx context.Context, id int64) (*order.Order, error)

	CheckBalance(ctx context.Context, email string) (order.BalanceSummary, error)
	FindOrders(ctx context.Context, q order.LookupQuery) (*order.Lookup, error)
	Dashboard(ctx context.Context, q order.DashboardQuery) (*order.Dashboard, error)
}

var _ OrderService = (*order.Service)(nil)

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	products product.Repository
	orders   OrderService
	pages    pages
}

// NewHandler parses the page templates and returns a Handler.
func NewHandler(products product.Repository, orders OrderService) (*Handler, error) {
	p, err := parsePages()
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return &Handler{
		products: products,
		orders:   orders,
		pages:    p,
	}, nil
}

// Mount registers all routes on r. The admin group is wrapped with guard.
func (h *Handler) Mount(r chi.Router, guard httpmiddleware.Middleware) {
	r.Get("/", h.Index)
	r.Get("/products", h.ListProducts)
	r.Post("/orders", h.PlaceOrder)
	r.Get("/my-orders", h.LookupForm)
	r.Post("/my-orders", h.Lookup)
	r.Post("/api/check-balance", h.CheckBalance)

	r.Route("/admin", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", h.AdminDashboard)
		r.Post("/pay/{id}", h.RecordPayment)
		r.Post("/adjust-delivery/{id}", h.AdjustDeliveryFee)
		r.Post("/add-discount/{id}", h.ApplyDiscount)
		r.Post("/cancel-discount/{id}", h.CancelDiscount)
		r.Post("/mark-delivered/{id}", h.Close)
		r.Post("/close/{id}", h.Close)
		r.Post("/reopen/{id}", h.Reopen)
	})
}

// Router returns a chi router with all routes mounted. Middlewares run inside
// the router so they can see the matched route pattern.
func (h *Handler) Router(guard httpmiddleware.Middleware, middlewares ...httpmiddleware.Middleware) http.Handler {
	r := chi.NewRouter()
	for _, m := range middlewares {
		r.Use(m)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, r, &order.NotFoundError{Entity: "page", ID: r.URL.Path})
	})
	h.Mount(r, guard)
	return r
}
