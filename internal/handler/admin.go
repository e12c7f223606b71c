package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tortilla-storefront/internal/domain/order"
)

// AdminDashboard renders every order with its derived amounts and the
// outstanding balance summary.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.orders.Dashboard(r.Context(), order.DashboardQuery{Search: r.URL.Query().Get("search")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageAdmin, dash)
}

// RecordPayment adds the posted payment to the order.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	h.adjustAmount(w, r, "payment", h.orders.RecordPayment)
}

// AdjustDeliveryFee overrides the delivery fee of the order.
func (h *Handler) AdjustDeliveryFee(w http.ResponseWriter, r *http.Request) {
	h.adjustAmount(w, r, "delivery_fee", h.orders.AdjustDeliveryFee)
}

// ApplyDiscount discounts the order's standard total.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	h.adjustAmount(w, r, "discount", h.orders.ApplyDiscount)
}

// CancelDiscount restores the order's standard total.
func (h *Handler) CancelDiscount(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.orders.CancelDiscount)
}

// Close marks the order as delivered.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.orders.Close)
}

// Reopen reopens a closed order.
func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.orders.Reopen)
}

type amountFunc func(ctx context.Context, id int64, v decimal.Decimal) (*order.Order, error)

func (h *Handler) adjustAmount(w http.ResponseWriter, r *http.Request, field string, fn amountFunc) {
	raw := strings.TrimSpace(r.FormValue(field))
	v, err := decimal.NewFromString(raw)
	if err != nil {
		h.fail(w, r, &order.ValidationError{Field: field, Reason: "must be a number"})
		return
	}
	h.adjust(w, r, func(ctx context.Context, id int64) (*order.Order, error) {
		return fn(ctx, id, v)
	})
}

// adjust runs fn against the order named in the URL. Browsers are sent back
// to the dashboard, JSON clients get the updated order.
func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (*order.Order, error)) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.fail(w, r, &order.NotFoundError{Entity: "order", ID: raw})
		return
	}

	o, err := fn(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
