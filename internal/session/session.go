// Package session keeps one set of storefront stores per browser session.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/receipt"
)

// Deps are the shared collaborators of every session.
type Deps struct {
	Catalog  product.Catalog
	Users    auth.Repository
	Gateway  checkout.Gateway
	Prices   checkout.Converter
	Receipts receipt.Repository
	Checkout checkout.Config

	// Optional instrumentation.
	Tracer   trace.Tracer
	Outcomes metric.Int64Counter
	Logger   *zap.Logger
}

// State is the root state snapshot of a session.
type State struct {
	Cart     cart.State
	Products product.State
	Auth     auth.State
	Checkout checkout.State
}

// Session is the store set of one browser session.
type Session struct {
	ID       string
	Cart     *cart.Store
	Products *product.Store
	Auth     *auth.Store
	Checkout *checkout.Orchestrator

	lastSeen atomic.Int64
}

// State returns a snapshot of every store.
func (s *Session) State() State {
	return State{
		Cart:     s.Cart.State(),
		Products: s.Products.State(),
		Auth:     s.Auth.State(),
		Checkout: s.Checkout.State(),
	}
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// Registry owns the live sessions.
type Registry struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long an idle session is kept. Zero keeps sessions forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry returns an empty Registry.
func NewRegistry(deps Deps, opts ...Option) *Registry {
	r := &Registry{
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the session for id, creating it when unknown. Ids that are not
// UUIDs are replaced by a fresh one, so callers must use the returned
// Session.ID. The boolean reports whether the session was created.
func (r *Registry) Get(ctx context.Context, id string) (*Session, bool) {
	known := false
	if _, err := uuid.Parse(id); err == nil {
		known = true
	} else {
		id = uuid.NewString()
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = r.newSession(id)
		r.sessions[id] = s
	}
	s.touch(r.now())
	r.mu.Unlock()

	if !ok && known {
		// The id may belong to a session that outlived the process.
		s.Auth.Hydrate(ctx)
	}
	return s, !ok
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed. Sessions with a checkout in progress are kept.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if s.idleSince(now) < r.ttl || s.Checkout.State().Processing {
			continue
		}
		delete(r.sessions, id)
		n++
	}
	return n
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				lg.Debug("Evicted idle sessions", zap.Int("count", n), zap.Int("live", r.Len()))
			}
		}
	}
}

func (r *Registry) newSession(id string) *Session {
	d := r.deps

	var popts []product.StoreOption
	copts := []checkout.Option{checkout.WithReceipts(d.Receipts)}
	if d.Tracer != nil {
		popts = append(popts, product.WithTracer(d.Tracer))
		copts = append(copts, checkout.WithTracer(d.Tracer))
	}
	if d.Outcomes != nil {
		copts = append(copts, checkout.WithOutcomeCounter(d.Outcomes))
	}
	if d.Logger != nil {
		copts = append(copts, checkout.WithLogger(d.Logger.With(zap.String("session", id))))
	}

	s := &Session{
		ID:       id,
		Cart:     cart.NewStore(),
		Products: product.NewStore(d.Catalog, popts...),
		Auth:     auth.NewStore(id, d.Users),
	}
	s.Checkout = checkout.New(d.Checkout, s.Cart, s.Auth, d.Gateway, d.Prices, copts...)
	return s
}
