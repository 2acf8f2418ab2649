// Package fakestore is a client for the public fakestoreapi.com catalog.
package fakestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/storefront/internal/domain/product"
)

// DefaultBaseURL is the public demo catalog.
const DefaultBaseURL = "https://fakestoreapi.com"

// maxBody bounds catalog responses.
const maxBody = 8 << 20

var _ product.Catalog = (*Client)(nil)

// Client implements product.Catalog over HTTP.
type Client struct {
	base     string
	http     *http.Client
	requests metric.Int64Counter
}

// Option configures a Client.
type Option func(*options)

type options struct {
	http  *http.Client
	meter metric.MeterProvider
	trans []otelhttp.Option
}

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// with otelhttp.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.http = c }
}

// WithMeterProvider records request counts with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meter = mp
		o.trans = append(o.trans, otelhttp.WithMeterProvider(mp))
	}
}

// WithTransportOptions passes options to the otelhttp transport, such as the
// tracer provider.
func WithTransportOptions(opts ...otelhttp.Option) Option {
	return func(o *options) { o.trans = append(o.trans, opts...) }
}

// New returns a Client for the catalog at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := options{
		http:  &http.Client{},
		meter: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := *o.http
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = otelhttp.NewTransport(rt, o.trans...)

	requests, err := o.meter.Meter("storefront/fakestore").Int64Counter("catalog.requests",
		metric.WithDescription("Catalog requests by endpoint and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}

	return &Client{
		base:     strings.TrimSuffix(baseURL, "/"),
		http:     &base,
		requests: requests,
	}, nil
}

// List implements product.Catalog.
func (c *Client) List(ctx context.Context) ([]product.Product, error) {
	var items []product.Product
	err := c.get(ctx, "products", "/products", func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			p, err := decodeProduct(d)
			if err != nil {
				return err
			}
			items = append(items, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []product.Product{}
	}
	return items, nil
}

// GetByID implements product.Catalog. The upstream answers an unknown id with
// 404 or with an empty body; both map to product.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var (
		p     product.Product
		found bool
	)
	err := c.get(ctx, "product", "/products/"+strconv.FormatInt(id, 10), func(d *jx.Decoder) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := decodeProduct(d)
		p, found = v, true
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// Categories implements product.Catalog.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	out := []string{}
	err := c.get(ctx, "categories", "/products/categories", func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			s, err := d.Str()
			if err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, decode func(d *jx.Decoder) error) (rerr error) {
	defer func() {
		result := "ok"
		switch {
		case errors.Is(rerr, product.ErrNotFound):
			result = "not_found"
		case rerr != nil:
			result = "error"
		}
		c.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("result", result),
		))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "get %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return product.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return &StatusError{Code: resp.StatusCode}
	case len(strings.TrimSpace(string(body))) == 0:
		// fakestoreapi answers unknown ids with an empty 200.
		return decode(jx.DecodeStr("null"))
	}

	if err := decode(jx.DecodeBytes(body)); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// StatusError is returned for unexpected upstream status codes.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog responded with status %d", e.Code)
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Int64()
			p.ID = v
			return err
		case "title":
			v, err := d.Str()
			p.Title = v
			return err
		case "description":
			v, err := d.Str()
			p.Description = v
			return err
		case "category":
			v, err := d.Str()
			p.Category = v
			return err
		case "image":
			v, err := d.Str()
			p.Image = v
			return err
		case "price":
			n, err := d.Num()
			if err != nil {
				return err
			}
			v, err := decimal.NewFromString(n.String())
			if err != nil {
				return errors.Wrap(err, "price")
			}
			p.Price = v
			return nil
		case "rating":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "rate":
					v, err := d.Float64()
					p.Rating.Rate = v
					return err
				case "count":
					v, err := d.Int()
					p.Rating.Count = v
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	return p, err
}
