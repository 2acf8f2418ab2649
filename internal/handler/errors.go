package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/payment"
)

var (
	// errBadRequest marks malformed input.
	errBadRequest = errors.New("bad request")
	// errUpstream marks a failed catalog request.
	errUpstream = errors.New("catalog unavailable")
)

// errorStatus maps a domain error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrNotAuthenticated):
		return http.StatusUnauthorized, checkout.NoticeLoginRequired
	case errors.Is(err, checkout.ErrScriptLoad):
		return http.StatusBadGateway, checkout.NoticeScriptLoad
	case errors.Is(err, checkout.ErrGatewayInit):
		return http.StatusBadGateway, checkout.NoticeInitFailed
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, payment.ErrSignatureMismatch):
		return http.StatusBadRequest, payment.ErrSignatureMismatch.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, product.ErrNotFound.Error()
	case errors.Is(err, checkout.ErrUnknownDialog):
		return http.StatusNotFound, checkout.ErrUnknownDialog.Error()
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errUpstream):
		return http.StatusBadGateway, errUpstream.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError responds with {"code","message"}. Unmapped errors are logged and
// hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := errorStatus(err)
	if code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}
