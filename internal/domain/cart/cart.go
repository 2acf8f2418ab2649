// Package cart holds the shopping cart reducer and its store.
package cart

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

// Item is a cart line: a product paired with a positive quantity.
type Item struct {
	product.Product
	Quantity int
}

// Subtotal returns price × quantity for the line.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// State is the cart of one session. Items keep insertion order and hold at
// most one line per product ID. The totals always equal Totals(Items).
type State struct {
	Items         []Item
	TotalQuantity int
	TotalAmount   decimal.Decimal
}

// Empty reports whether the cart has no lines.
func (s State) Empty() bool {
	return len(s.Items) == 0
}

// Totals computes the total quantity and amount of items.
func Totals(items []Item) (quantity int, amount decimal.Decimal) {
	amount = decimal.Zero
	for _, it := range items {
		quantity += it.Quantity
		amount = amount.Add(it.Subtotal())
	}
	return quantity, amount
}

// Action is a cart mutation accepted by Reduce.
type Action interface {
	isAction()
}

// AddToCart adds one unit of Product.
type AddToCart struct {
	Product product.Product
}

// RemoveFromCart drops the line for ProductID.
type RemoveFromCart struct {
	ProductID int64
}

// UpdateQuantity sets the quantity of the line for ProductID. Quantities of
// zero or less are ignored; they do not remove the line.
type UpdateQuantity struct {
	ProductID int64
	Quantity  int
}

// ClearCart empties the cart.
type ClearCart struct{}

func (AddToCart) isAction()      {}
func (RemoveFromCart) isAction() {}
func (UpdateQuantity) isAction() {}
func (ClearCart) isAction()      {}

// Reduce returns the cart that results from applying a to s. The item slice of
// s is never modified in place. Every action is total: unknown IDs and
// non-positive quantities leave the items as they were.
func Reduce(s State, a Action) State {
	items := slices.Clone(s.Items)

	switch a := a.(type) {
	case AddToCart:
		if i := indexOf(items, a.Product.ID); i >= 0 {
			items[i].Quantity++
		} else {
			items = append(items, Item{Product: a.Product, Quantity: 1})
		}
	case RemoveFromCart:
		items = slices.DeleteFunc(items, func(it Item) bool {
			return it.ID == a.ProductID
		})
	case UpdateQuantity:
		if i := indexOf(items, a.ProductID); i >= 0 && a.Quantity > 0 {
			items[i].Quantity = a.Quantity
		}
	case ClearCart:
		items = nil
	}

	return newState(items)
}

func newState(items []Item) State {
	qty, amount := Totals(items)
	return State{
		Items:         items,
		TotalQuantity: qty,
		TotalAmount:   amount,
	}
}

func indexOf(items []Item, id int64) int {
	return slices.IndexFunc(items, func(it Item) bool {
		return it.ID == id
	})
}

// Store serializes cart dispatches for one session.
type Store struct {
	mu    sync.Mutex
	state State
}

// NewStore returns an empty cart store.
func NewStore() *Store {
	return &Store{state: newState(nil)}
}

// Dispatch applies a and returns the new cart.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, a)
	return s.state
}

// State returns the current cart.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
