// Package receipt records completed checkouts.
package receipt

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Receipt is the record of a successful payment.
type Receipt struct {
	// ID is the payment identifier reported by the gateway.
	ID          string
	Username    string
	Gateway     string
	Amount      decimal.Decimal
	MinorAmount int64
	Currency    string
	Lines       []Line
	CreatedAt   time.Time
}

// Line is a purchased cart line.
type Line struct {
	ProductID int64
	Title     string
	Price     decimal.Decimal
	Quantity  int
}

// Repository persists receipts.
type Repository interface {
	Create(ctx context.Context, r *Receipt) error
	// ListByUser returns the receipts of username, newest first.
	ListByUser(ctx context.Context, username string) ([]Receipt, error)
}

// EncodeLines serializes lines as a JSON array for document columns.
func EncodeLines(lines []Line) []byte {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(l.Title) })
				e.Field("price", func(e *jx.Encoder) { e.Str(l.Price.String()) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
			})
		}
	})
	return e.Bytes()
}

// DecodeLines parses the output of EncodeLines.
func DecodeLines(raw []byte) ([]Line, error) {
	var lines []Line
	err := jx.DecodeBytes(raw).Arr(func(d *jx.Decoder) error {
		var l Line
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "product_id":
				v, err := d.Int64()
				l.ProductID = v
				return err
			case "title":
				v, err := d.Str()
				l.Title = v
				return err
			case "price":
				v, err := d.Str()
				if err != nil {
					return err
				}
				price, err := decimal.NewFromString(v)
				if err != nil {
					return errors.Wrap(err, "price")
				}
				l.Price = price
				return nil
			case "quantity":
				v, err := d.Int()
				l.Quantity = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}
