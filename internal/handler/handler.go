// Package handler serves the storefront JSON API.
package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/receipt"
	"github.com/xenking/storefront/internal/session"
)

const (
	// SessionHeader carries the session id for non-browser clients.
	SessionHeader = "X-Session-ID"
	// SessionCookie carries the session id for browsers.
	SessionCookie = "storefront_session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Formatter renders base-currency amounts for display.
type Formatter interface {
	Format(amount decimal.Decimal) string
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	// CookieMaxAge is the session cookie lifetime. Zero makes it a browser
	// session cookie.
	CookieMaxAge time.Duration
}

// Handler implements the storefront HTTP API on top of the session registry.
type Handler struct {
	cfg      Config
	sessions *session.Registry
	authn    auth.Authenticator
	catalog  product.Catalog
	prices   Formatter
	receipts receipt.Repository
}

// New constructs a Handler with the required dependencies.
func New(
	cfg Config,
	sessions *session.Registry,
	authn auth.Authenticator,
	catalog product.Catalog,
	prices Formatter,
	receipts receipt.Repository,
) *Handler {
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		authn:    authn,
		catalog:  catalog,
		prices:   prices,
		receipts: receipts,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", h.withSession(h.getState))

	mux.HandleFunc("GET /api/products", h.withSession(h.listProducts))
	mux.HandleFunc("POST /api/products/refresh", h.withSession(h.refreshProducts))
	mux.HandleFunc("GET /api/products/{id}", h.withSession(h.getProduct))
	mux.HandleFunc("POST /api/products/filter", h.withSession(h.filterProducts))
	mux.HandleFunc("POST /api/products/search", h.withSession(h.searchProducts))
	mux.HandleFunc("GET /api/categories", h.withSession(h.listCategories))

	mux.HandleFunc("GET /api/cart", h.withSession(h.getCart))
	mux.HandleFunc("POST /api/cart/items", h.withSession(h.addCartItem))
	mux.HandleFunc("PATCH /api/cart/items/{id}", h.withSession(h.updateCartItem))
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.withSession(h.removeCartItem))
	mux.HandleFunc("DELETE /api/cart", h.withSession(h.clearCart))

	mux.HandleFunc("POST /api/auth/login", h.withSession(h.login))
	mux.HandleFunc("POST /api/auth/logout", h.withSession(h.logout))
	mux.HandleFunc("GET /api/auth/me", h.withSession(h.me))

	mux.HandleFunc("POST /api/checkout", h.withSession(h.startCheckout))
	mux.HandleFunc("GET /api/checkout", h.withSession(h.getCheckout))
	mux.HandleFunc("POST /api/checkout/{dialogId}/complete", h.withSession(h.completeCheckout))
	mux.HandleFunc("POST /api/checkout/{dialogId}/dismiss", h.withSession(h.dismissCheckout))

	mux.HandleFunc("GET /api/orders", h.withSession(h.listOrders))
}

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, s *session.Session)

// withSession resolves the caller's session, issuing a new one when the
// request carries none, and adds it to the request logger.
func (h *Handler) withSession(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
		}

		s, created := h.sessions.Get(r.Context(), id)
		if s.ID != id {
			http.SetCookie(w, h.cookie(s.ID))
		}
		w.Header().Set(SessionHeader, s.ID)

		ctx := zctx.With(r.Context(), zap.String("session", s.ID))
		if created {
			zctx.From(ctx).Debug("Session started")
		}
		next(w, r.WithContext(ctx), s)
	}
}

func (h *Handler) cookie(id string) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.CookieMaxAge > 0 {
		c.MaxAge = int(h.cfg.CookieMaxAge / time.Second)
	}
	return c
}

func (h *Handler) getState(w http.ResponseWriter, _ *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, h.encodeState(s.State()))
}
