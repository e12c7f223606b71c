package handler

import (
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/tortilla-storefront/internal/domain/order"
)

const (
	timeLayout = time.RFC3339
	maxBody    = 1 << 16
)

// CheckBalance returns the aggregate balance for an email given either as a
// JSON body {"email": "..."} or as a form field.
func (h *Handler) CheckBalance(w http.ResponseWriter, r *http.Request) {
	email, err := balanceEmail(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sum, err := h.orders.CheckBalance(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("totalBalance")
		amount(e, sum.TotalBalance)
		e.FieldStart("orderCount")
		e.Int(sum.OrderCount)
		e.FieldStart("hasOrders")
		e.Bool(sum.HasOrders)
		e.ObjEnd()
	})
}

func balanceEmail(r *http.Request) (string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		return r.FormValue("email"), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}
	var email string
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != "email" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		email = v
		return err
	}); err != nil {
		return "", &order.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	return email, nil
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("customerId")
	e.Int64(o.CustomerID)
	e.FieldStart("orderDate")
	e.Str(o.OrderDate.UTC().Format(timeLayout))
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("itemsSubtotal")
	amount(e, o.ItemsSubtotal())
	e.FieldStart("deliveryFee")
	amount(e, o.DeliveryFee)
	e.FieldStart("totalPrice")
	amount(e, o.TotalPrice)
	e.FieldStart("payments")
	amount(e, o.Payments)
	e.FieldStart("balance")
	amount(e, o.Balance())
	e.FieldStart("items")
	encodeItems(e, o.Items)
	e.ObjEnd()
}
