package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageIndex   = "index.html"
	pageReceipt = "receipt.html"
	pageLookup  = "lookup.html"
	pageOrders  = "orders.html"
	pageAdmin   = "admin.html"
	pageError   = "error.html"
)

// pages maps a page file to its template, each parsed together with the
// shared layout.
type pages map[string]*template.Template

var funcs = template.FuncMap{
	"money": money,
	"abs":   func(d decimal.Decimal) decimal.Decimal { return d.Abs() },
	"date":  func(t time.Time) string { return t.Format("2006-01-02 15:04") },
}

func parsePages() (pages, error) {
	p := make(pages)
	for _, name := range []string{pageIndex, pageReceipt, pageLookup, pageOrders, pageAdmin, pageError} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", name)
		}
		p[name] = t
	}
	return p, nil
}

// money formats an amount as dollars, e.g. "$12.50" or "-$3.00".
func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// render executes page into a buffer first so template errors never produce
// a half written response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		zctx.From(r.Context()).Error("Render template", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// amount writes d as a JSON number with two decimals.
func amount(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}
