package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/tortilla-storefront/internal/domain/customer"
	"github.com/xenking/tortilla-storefront/internal/domain/order"
	"github.com/xenking/tortilla-storefront/internal/domain/product"
)

const qtyPrefix = "qty_"

type indexPage struct {
	Products []product.Product
}

type lookupPage struct {
	Query  order.LookupQuery
	Error  string
	Result *order.Lookup
}

// Index renders the storefront with the catalog and the order form.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	h.render(w, r, http.StatusOK, pageIndex, indexPage{Products: products})
}

// ListProducts returns the catalog as JSON.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			e.ObjStart()
			e.FieldStart("product_id")
			e.Int64(p.ID)
			e.FieldStart("color")
			e.Str(p.Color)
			e.FieldStart("variant")
			e.Str(p.Variant)
			e.FieldStart("price")
			amount(e, p.Price)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

// PlaceOrder accepts the order form. Quantities are posted as qty_<productId>;
// blank or unparsable quantities are ignored.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, &order.ValidationError{Field: "form", Reason: "malformed form body"})
		return
	}

	cart := make(map[int64]int)
	for key, values := range r.PostForm {
		rawID, ok := strings.CutPrefix(key, qtyPrefix)
		if !ok || len(values) == 0 {
			continue
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 32)
		if errors.Is(err, strconv.ErrRange) {
			h.fail(w, r, &order.ValidationError{Field: key, Reason: "quantity is too large"})
			return
		}
		if err != nil {
			continue
		}
		cart[id] = int(qty)
	}

	receipt, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Contact: customer.Contact{
			Name:    r.PostForm.Get("name"),
			Address: r.PostForm.Get("address"),
			Phone:   r.PostForm.Get("phone"),
			Email:   r.PostForm.Get("email"),
		},
		Cart: cart,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeReceipt(e, receipt) })
		return
	}
	h.render(w, r, http.StatusCreated, pageReceipt, receipt)
}

// LookupForm renders the self-service order lookup form.
func (h *Handler) LookupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageLookup, lookupPage{})
}

// Lookup renders the orders of the customer matching the submitted email,
// name or phone number.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := order.LookupQuery{
		Email: r.FormValue("email"),
		Name:  r.FormValue("name"),
		Phone: r.FormValue("phone"),
	}
	res, err := h.orders.FindOrders(r.Context(), q)
	if err != nil {
		var verr *order.ValidationError
		if errors.As(err, &verr) {
			h.render(w, r, http.StatusBadRequest, pageLookup, lookupPage{Query: q, Error: verr.Reason})
			return
		}
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageOrders, lookupPage{Query: q, Result: res})
}

func encodeReceipt(e *jx.Encoder, rc *order.Receipt) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Int64(rc.OrderID)
	e.FieldStart("orderDate")
	e.Str(rc.OrderDate.UTC().Format(timeLayout))
	e.FieldStart("customerId")
	e.Int64(rc.Customer.ID)
	e.FieldStart("newCustomer")
	e.Bool(rc.NewCustomer)
	e.FieldStart("items")
	encodeItems(e, rc.Items)
	e.FieldStart("itemsSubtotal")
	amount(e, rc.ItemsSubtotal)
	e.FieldStart("deliveryFee")
	amount(e, rc.DeliveryFee)
	e.FieldStart("rateLabel")
	e.Str(rc.RateLabel)
	e.FieldStart("total")
	amount(e, rc.Total)
	e.FieldStart("previousBalance")
	amount(e, rc.PreviousBalance)
	e.FieldStart("currentBalance")
	amount(e, rc.CurrentBalance)
	e.ObjEnd()
}

func encodeItems(e *jx.Encoder, items []order.Item) {
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name())
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("subtotal")
		amount(e, it.Subtotal)
		e.ObjEnd()
	}
	e.ArrEnd()
}
