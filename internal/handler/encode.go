package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/receipt"
	"github.com/xenking/storefront/internal/session"
)

// encodeFunc writes one JSON value.
type encodeFunc func(e *jx.Encoder)

func writeJSON(w http.ResponseWriter, status int, enc encodeFunc) {
	var e jx.Encoder
	enc(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func (h *Handler) encodeState(st session.State) encodeFunc {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("cart", h.encodeCart(st.Cart))
			e.Field("products", h.encodeProducts(st.Products))
			e.Field("auth", encodeAuth(st.Auth))
			e.Field("checkout", encodeCheckout(st.Checkout))
		})
	}
}

func (h *Handler) encodeProduct(p product.Product) encodeFunc {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			h.productFields(e, p)
		})
	}
}

func (h *Handler) productFields(e *jx.Encoder, p product.Product) {
	e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
	e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
	e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
	e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
	e.Field("displayPrice", func(e *jx.Encoder) { e.Str(h.prices.Format(p.Price)) })
	e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
	e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
	e.Field("rating", func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("rate", func(e *jx.Encoder) { e.Float64(p.Rating.Rate) })
			e.Field("count", func(e *jx.Encoder) { e.Int(p.Rating.Count) })
		})
	})
}

func (h *Handler) encodeProductList(items []product.Product) encodeFunc {
	return func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range items {
				h.encodeProduct(p)(e)
			}
		})
	}
}

func (h *Handler) encodeProducts(st product.State) encodeFunc {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", h.encodeProductList(st.Items))
			e.Field("filteredItems", h.encodeProductList(st.FilteredItems))
			e.Field("selectedCategory", func(e *jx.Encoder) { e.Str(st.SelectedCategory) })
			e.Field("loading", func(e *jx.Encoder) { e.Bool(st.Loading) })
			e.Field("error", func(e *jx.Encoder) { optStr(e, st.Err) })
		})
	}
}

func (h *Handler) encodeCart(st cart.State) encodeFunc {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, it := range st.Items {
						e.Obj(func(e *jx.Encoder) {
							h.productFields(e, it.Product)
							e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
							e.Field("subtotal", func(e *jx.Encoder) { money(e, it.Subtotal()) })
							e.Field("displaySubtotal", func(e *jx.Encoder) { e.Str(h.prices.Format(it.Subtotal())) })
						})
					}
				})
			})
			e.Field("totalQuantity", func(e *jx.Encoder) { e.Int(st.TotalQuantity) })
			e.Field("totalAmount", func(e *jx.Encoder) { money(e, st.TotalAmount) })
			e.Field("displayTotal", func(e *jx.Encoder) { e.Str(h.prices.Format(st.TotalAmount)) })
		})
	}
}

func encodeAuth(st auth.State) encodeFunc {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("user", func(e *jx.Encoder) {
				if st.User == nil {
					e.Null()
					return
				}
				e.Obj(func(e *jx.Encoder) {
					e.Field("username", func(e *jx.Encoder) { e.Str(st.User.Username) })
					e.Field("token", func(e *jx.Encoder) { e.Str(st.User.Token) })
					e.Field("isAuthenticated", func(e *jx.Encoder) { e.Bool(st.User.Authenticated) })
				})
			})
			e.Field("isAuthenticated", func(e *jx.Encoder) { e.Bool(st.Authenticated()) })
			e.Field("loading", func(e *jx.Encoder) { e.Bool(st.Loading) })
			e.Field("error", func(e *jx.Encoder) { optStr(e, st.Err) })
		})
	}
}

func encodeCheckout(st checkout.State) encodeFunc {
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("processing", func(e *jx.Encoder) { e.Bool(st.Processing) })
			e.Field("dialog", func(e *jx.Encoder) {
				if st.Dialog == nil {
					e.Null()
					return
				}
				encodeDialog(st.Dialog)(e)
			})
			e.Field("notice", func(e *jx.Encoder) { optStr(e, st.Notice) })
			e.Field("lastPaymentId", func(e *jx.Encoder) { optStr(e, st.LastPaymentID) })
		})
	}
}

// encodeDialog writes the dialog together with the options object the
// browser passes to the gateway script.
func encodeDialog(d *checkout.Dialog) encodeFunc {
	req := d.Request
	return func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
			e.Field("gateway", func(e *jx.Encoder) { e.Str(d.Gateway) })
			e.Field("scriptUrl", func(e *jx.Encoder) { optStr(e, d.ScriptURL) })
			e.Field("options", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("key", func(e *jx.Encoder) { e.Str(d.Key) })
					e.Field("amount", func(e *jx.Encoder) { e.Int64(req.MinorAmount) })
					e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
					e.Field("name", func(e *jx.Encoder) { e.Str(req.Name) })
					e.Field("description", func(e *jx.Encoder) { e.Str(req.Description) })
					e.Field("image", func(e *jx.Encoder) { e.Str(req.Image) })
					e.Field("order_id", func(e *jx.Encoder) { e.Str(d.OrderID) })
					e.Field("prefill", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("name", func(e *jx.Encoder) { e.Str(req.Prefill.Name) })
							e.Field("email", func(e *jx.Encoder) { e.Str(req.Prefill.Email) })
							e.Field("contact", func(e *jx.Encoder) { e.Str(req.Prefill.Contact) })
						})
					})
					e.Field("theme", func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("color", func(e *jx.Encoder) { e.Str(req.ThemeColor) })
						})
					})
				})
			})
		})
	}
}

func (h *Handler) encodeReceipts(list []receipt.Receipt) encodeFunc {
	return func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, r := range list {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
					e.Field("gateway", func(e *jx.Encoder) { e.Str(r.Gateway) })
					e.Field("amount", func(e *jx.Encoder) { money(e, r.Amount) })
					e.Field("displayAmount", func(e *jx.Encoder) { e.Str(h.prices.Format(r.Amount)) })
					e.Field("minorAmount", func(e *jx.Encoder) { e.Int64(r.MinorAmount) })
					e.Field("currency", func(e *jx.Encoder) { e.Str(r.Currency) })
					e.Field("createdAt", func(e *jx.Encoder) { e.Str(r.CreatedAt.UTC().Format(time.RFC3339)) })
					e.Field("items", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							for _, l := range r.Lines {
								e.Obj(func(e *jx.Encoder) {
									e.Field("productId", func(e *jx.Encoder) { e.Int64(l.ProductID) })
									e.Field("title", func(e *jx.Encoder) { e.Str(l.Title) })
									e.Field("price", func(e *jx.Encoder) { money(e, l.Price) })
									e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
								})
							}
						})
					})
				})
			}
		})
	}
}

func encodeStrings(list []string) encodeFunc {
	return func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, s := range list {
				e.Str(s)
			}
		})
	}
}

// optStr writes s, or null when it is empty.
func optStr(e *jx.Encoder, s string) {
	if s == "" {
		e.Null()
		return
	}
	e.Str(s)
}
