package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/session"
)

// listProducts returns the product state, fetching the catalog first if the
// session has not loaded it yet.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if !s.Products.Loaded() {
		// A failed fetch is recorded in the state.
		_ = s.Products.GetProducts(r.Context())
	}
	writeJSON(w, http.StatusOK, h.encodeProducts(s.Products.State()))
}

// refreshProducts is the manual retry of the catalog fetch.
func (h *Handler) refreshProducts(w http.ResponseWriter, r *http.Request, s *session.Session) {
	_ = s.Products.GetProducts(r.Context())
	writeJSON(w, http.StatusOK, h.encodeProducts(s.Products.State()))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.Products.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusOK, h.encodeProduct(*p))
}

func (h *Handler) filterProducts(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var category string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "category" {
			return d.Skip()
		}
		v, err := d.Str()
		category = v
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if category == "" {
		category = product.CategoryAll
	}

	st := s.Products.Dispatch(product.FilterByCategory{Category: category})
	writeJSON(w, http.StatusOK, h.encodeProducts(st))
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var query string
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "query" {
			return d.Skip()
		}
		v, err := d.Str()
		query = v
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	st := s.Products.Dispatch(product.SearchProducts{Query: query})
	writeJSON(w, http.StatusOK, h.encodeProducts(st))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	list, err := h.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, upstream(err))
		return
	}
	writeJSON(w, http.StatusOK, encodeStrings(list))
}

// upstream marks catalog failures other than a missing product.
func upstream(err error) error {
	if errors.Is(err, product.ErrNotFound) {
		return err
	}
	return errors.Wrapf(errUpstream, "%v", err)
}
