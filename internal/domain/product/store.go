package product

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"
)

// fetchTimeout bounds a shared catalog fetch, which outlives the callers that
// joined it.
const fetchTimeout = 30 * time.Second

// Store holds the product state of one session and drives the asynchronous
// catalog fetch lifecycle. Dispatches are serialized; the catalog call itself
// runs outside the lock.
type Store struct {
	catalog Catalog
	tracer  trace.Tracer
	flight  singleflight.Group

	mu     sync.Mutex
	state  State
	loaded bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTracer sets the tracer used for catalog fetch spans.
func WithTracer(t trace.Tracer) StoreOption {
	return func(s *Store) {
		s.tracer = t
	}
}

// NewStore creates a Store in the idle state backed by the given catalog.
func NewStore(catalog Catalog, opts ...StoreOption) *Store {
	s := &Store{
		catalog: catalog,
		tracer:  noop.NewTracerProvider().Tracer(""),
		state:   InitialState(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dispatch applies a to the current state and returns the result.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Reduce(s.state, a)
	if _, ok := a.(FetchSucceeded); ok {
		s.loaded = true
	}
	return s.state
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loaded reports whether at least one fetch has succeeded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// GetProducts fetches the catalog and records the outcome in the state.
// Calls issued while a fetch is in flight join it instead of starting another
// one. A failure is stored as State.Err and also returned; it is never retried
// automatically. A caller whose ctx ends stops waiting, but the shared fetch
// runs to completion for the others.
func (s *Store) GetProducts(ctx context.Context) error {
	ch := s.flight.DoChan("products", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return nil, s.fetch(fctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) fetch(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "product.GetProducts")
	defer span.End()

	s.Dispatch(FetchStarted{})

	items, err := s.catalog.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.Dispatch(FetchFailed{Message: err.Error()})
		return errors.Wrap(err, "fetch products")
	}

	span.SetAttributes(attribute.Int("products.count", len(items)))
	s.Dispatch(FetchSucceeded{Products: items})
	return nil
}

// Lookup returns the product with the given id, preferring the loaded
// catalog and falling back to a single-product catalog request.
func (s *Store) Lookup(ctx context.Context, id int64) (*Product, error) {
	if p, ok := Find(s.State().Items, id); ok {
		return &p, nil
	}
	p, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}
