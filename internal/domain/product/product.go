package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// CategoryAll is the category filter sentinel that disables filtering.
const CategoryAll = "all"

// Product represents a catalog item fetched from the remote catalog. Products
// are immutable once fetched.
type Product struct {
	ID          int64
	Title       string
	Description string
	Price       decimal.Decimal
	Category    string
	Image       string
	Rating      Rating
}

// Rating is the aggregated customer score of a product.
type Rating struct {
	Rate  float64
	Count int
}

// Catalog defines read operations against the remote product catalog.
type Catalog interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Categories(ctx context.Context) ([]string, error)
}
