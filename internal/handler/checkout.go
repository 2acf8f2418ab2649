package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/session"
)

// startCheckout opens a payment dialog for the session's cart. The response
// carries the dialog options the browser hands to the gateway script.
func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request, s *session.Session) {
	d, err := s.Checkout.Checkout(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	st := s.Checkout.State()
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("dialog", encodeDialog(d))
			e.Field("checkout", encodeCheckout(st))
		})
	})
}

func (h *Handler) getCheckout(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, encodeCheckout(s.Checkout.State()))
}

// completeCheckout receives the gateway's success handler payload.
func (h *Handler) completeCheckout(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var c checkout.Completion
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "paymentId", "razorpay_payment_id":
			c.PaymentID, err = d.Str()
		case "orderId", "razorpay_order_id":
			c.OrderID, err = d.Str()
		case "signature", "razorpay_signature":
			c.Signature, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	dialogID := r.PathValue("dialogId")
	if c.OrderID != "" && c.OrderID != dialogID {
		writeError(w, r, errors.Wrap(errBadRequest, "orderId does not match dialog"))
		return
	}

	h.resolve(w, r, s, dialogID, checkout.Outcome{Kind: checkout.OutcomeCompleted, Completion: c})
}

// dismissCheckout receives the gateway's modal-dismissed event.
func (h *Handler) dismissCheckout(w http.ResponseWriter, r *http.Request, s *session.Session) {
	h.resolve(w, r, s, r.PathValue("dialogId"), checkout.Outcome{Kind: checkout.OutcomeDismissed})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, s *session.Session, dialogID string, out checkout.Outcome) {
	if err := s.Checkout.Resolve(r.Context(), dialogID, out); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("checkout", encodeCheckout(s.Checkout.State()))
			e.Field("cart", h.encodeCart(s.Cart.State()))
		})
	})
}
