package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tortilla-storefront/internal/domain/order"
)

type errorPage struct {
	Status  int
	Title   string
	Message string
}

// statusOf maps err to an HTTP status and the message safe to show to the
// client.
func statusOf(err error) (int, string) {
	var (
		verr *order.ValidationError
		nerr *order.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.As(err, &nerr):
		return http.StatusNotFound, nerr.Error()
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again later."
	}
}

// fail writes err as JSON or as the error page depending on the client.
// Server errors are logged, client errors are not.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	if wantsJSON(r) {
		writeJSON(w, status, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(status)
			e.FieldStart("message")
			e.Str(msg)
			e.ObjEnd()
		})
		return
	}
	h.render(w, r, status, pageError, errorPage{
		Status:  status,
		Title:   http.StatusText(status),
		Message: msg,
	})
}
