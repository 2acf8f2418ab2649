package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/session"
)

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, h.encodeCart(s.Cart.State()))
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var id int64
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "productId" {
			return d.Skip()
		}
		v, err := d.Int64()
		id = v
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if id <= 0 {
		writeError(w, r, errors.Wrap(errBadRequest, "productId is required"))
		return
	}

	p, err := s.Products.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, r, upstream(err))
		return
	}

	st := s.Cart.Dispatch(cart.AddToCart{Product: *p})
	writeJSON(w, http.StatusOK, h.encodeCart(st))
}

// updateCartItem sets a line quantity. Quantities below one leave the cart
// unchanged.
func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		qty    int
		hasQty bool
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		qty, hasQty = v, true
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !hasQty {
		writeError(w, r, errors.Wrap(errBadRequest, "quantity is required"))
		return
	}

	st := s.Cart.Dispatch(cart.UpdateQuantity{ProductID: id, Quantity: qty})
	writeJSON(w, http.StatusOK, h.encodeCart(st))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	st := s.Cart.Dispatch(cart.RemoveFromCart{ProductID: id})
	writeJSON(w, http.StatusOK, h.encodeCart(st))
}

func (h *Handler) clearCart(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	st := s.Cart.Dispatch(cart.ClearCart{})
	writeJSON(w, http.StatusOK, h.encodeCart(st))
}
