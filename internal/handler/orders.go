package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/session"
)

// listOrders returns the receipts of the signed-in user, newest first.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, s *session.Session) {
	st := s.Auth.State()
	if !st.Authenticated() {
		writeError(w, r, checkout.ErrNotAuthenticated)
		return
	}

	list, err := h.receipts.ListByUser(r.Context(), st.User.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.encodeReceipts(list))
}
