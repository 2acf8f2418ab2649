package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/session"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var creds auth.Credentials
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "username":
			creds.Username, err = d.Str()
		case "password":
			creds.Password, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.Auth.Login(r.Context(), h.authn, creds); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeAuth(s.Auth.State()))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request, s *session.Session) {
	st := s.Auth.Dispatch(r.Context(), auth.Logout{})
	writeJSON(w, http.StatusOK, encodeAuth(st))
}

func (h *Handler) me(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, encodeAuth(s.Auth.State()))
}
