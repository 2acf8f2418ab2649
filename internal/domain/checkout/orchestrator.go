package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/receipt"
)

// receiptTimeout bounds the best-effort receipt write after a completion.
const receiptTimeout = 5 * time.Second

// Config holds the merchant details shown in the payment dialog.
type Config struct {
	MerchantName   string
	Description    string
	Image          string
	ThemeColor     string
	PrefillEmail   string
	PrefillContact string
}

// State is the checkout state of one session.
type State struct {
	Processing bool
	Dialog     *Dialog
	// Notice is the last user-facing message produced by a checkout.
	Notice        string
	LastPaymentID string
}

// Orchestrator runs checkouts for one session. The processing flag is set for
// the lifetime of a dialog and cleared on every exit path.
type Orchestrator struct {
	cfg      Config
	cart     *cart.Store
	auth     *auth.Store
	gateway  Gateway
	prices   Converter
	receipts receipt.Repository
	tracer   trace.Tracer
	outcomes metric.Int64Counter
	lg       *zap.Logger

	mu    sync.Mutex
	state State
	// seq identifies the current attempt so late callbacks of an earlier
	// attempt are ignored.
	seq uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReceipts records a receipt for every completed payment.
func WithReceipts(r receipt.Repository) Option {
	return func(o *Orchestrator) { o.receipts = r }
}

// WithTracer sets the tracer for checkout spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithOutcomeCounter counts checkout outcomes by the "outcome" attribute.
func WithOutcomeCounter(c metric.Int64Counter) Option {
	return func(o *Orchestrator) { o.outcomes = c }
}

// WithLogger sets the logger used by asynchronous gateway callbacks.
func WithLogger(lg *zap.Logger) Option {
	return func(o *Orchestrator) { o.lg = lg }
}

// New creates an Orchestrator for the given session stores.
func New(
	cfg Config,
	carts *cart.Store,
	users *auth.Store,
	gateway Gateway,
	prices Converter,
	opts ...Option,
) *Orchestrator {
	counter, _ := metricnoop.NewMeterProvider().Meter("").Int64Counter("noop")
	o := &Orchestrator{
		cfg:      cfg,
		cart:     carts,
		auth:     users,
		gateway:  gateway,
		prices:   prices,
		tracer:   noop.NewTracerProvider().Tracer(""),
		outcomes: counter,
		lg:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current checkout state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Checkout starts a payment for the current cart. Without a signed-in user it
// returns ErrNotAuthenticated and changes nothing. On success the returned
// dialog stays pending until the gateway reports completion or dismissal.
func (o *Orchestrator) Checkout(ctx context.Context) (*Dialog, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.String("gateway", o.gateway.Name())),
	)
	defer span.End()

	req, seq, err := o.begin()
	if err != nil {
		o.count(ctx, outcomeOf(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d, err := o.open(ctx, req, o.callbacks(seq, req))
	if err != nil {
		notice := NoticeInitFailed
		if errors.Is(err, ErrScriptLoad) {
			notice = NoticeScriptLoad
		}
		o.end(seq, notice)
		o.count(ctx, outcomeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, notice)
		return nil, err
	}

	o.mu.Lock()
	if o.seq == seq && o.state.Processing {
		o.state.Dialog = d
	}
	o.mu.Unlock()

	o.count(ctx, "opened")
	span.SetAttributes(attribute.String("dialog.id", d.ID))
	return d, nil
}

// Resolve forwards the browser-reported outcome of the pending dialog to the
// gateway.
func (o *Orchestrator) Resolve(ctx context.Context, dialogID string, out Outcome) error {
	o.mu.Lock()
	pending := o.state.Processing && o.state.Dialog != nil && o.state.Dialog.ID == dialogID
	o.mu.Unlock()
	if !pending {
		return ErrUnknownDialog
	}
	return o.gateway.Resolve(ctx, dialogID, out)
}

// begin validates the preconditions and enters the processing state.
func (o *Orchestrator) begin() (PaymentRequest, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	as := o.auth.State()
	if !as.Authenticated() {
		return PaymentRequest{}, 0, ErrNotAuthenticated
	}
	if o.state.Processing {
		return PaymentRequest{}, 0, ErrCheckoutInProgress
	}
	cs := o.cart.State()
	if cs.Empty() {
		return PaymentRequest{}, 0, ErrEmptyCart
	}

	o.seq++
	o.state = State{Processing: true, LastPaymentID: o.state.LastPaymentID}
	return o.request(cs, as.User), o.seq, nil
}

func (o *Orchestrator) request(cs cart.State, u *auth.User) PaymentRequest {
	return PaymentRequest{
		Reference:   uuid.NewString(),
		Amount:      cs.TotalAmount,
		MinorAmount: o.prices.MinorUnits(cs.TotalAmount),
		Currency:    o.prices.Currency(),
		Name:        o.cfg.MerchantName,
		Description: o.cfg.Description,
		Image:       o.cfg.Image,
		ThemeColor:  o.cfg.ThemeColor,
		Prefill: Prefill{
			Name:    u.Username,
			Email:   o.cfg.PrefillEmail,
			Contact: o.cfg.PrefillContact,
		},
	}
}

// open calls the gateway, converting a panic into ErrGatewayInit.
func (o *Orchestrator) open(ctx context.Context, req PaymentRequest, cb Callbacks) (d *Dialog, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(ErrGatewayInit, fmt.Sprintf("panic: %v", r))
		}
	}()
	return o.gateway.Open(ctx, req, cb)
}

func (o *Orchestrator) callbacks(seq uint64, req PaymentRequest) Callbacks {
	lines := o.lines()
	return Callbacks{
		OnComplete: func(c Completion) {
			if !o.complete(seq, c) {
				return
			}
			o.count(context.Background(), "completed")
			o.record(req, lines, c)
		},
		OnDismiss: func() {
			if o.end(seq, "") {
				o.count(context.Background(), "dismissed")
			}
		},
	}
}

// complete clears the cart and leaves the processing state. It reports false
// when seq is stale.
func (o *Orchestrator) complete(seq uint64, c Completion) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.seq != seq || !o.state.Processing {
		return false
	}
	o.cart.Dispatch(cart.ClearCart{})
	o.state = State{
		Notice:        NoticeSuccessPrefix + c.PaymentID,
		LastPaymentID: c.PaymentID,
	}
	return true
}

// end leaves the processing state without touching the cart.
func (o *Orchestrator) end(seq uint64, notice string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.seq != seq || !o.state.Processing {
		return false
	}
	o.state = State{Notice: notice, LastPaymentID: o.state.LastPaymentID}
	return true
}

func (o *Orchestrator) lines() []receipt.Line {
	items := o.cart.State().Items
	lines := make([]receipt.Line, len(items))
	for i, it := range items {
		lines[i] = receipt.Line{
			ProductID: it.ID,
			Title:     it.Title,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
	}
	return lines
}

func (o *Orchestrator) record(req PaymentRequest, lines []receipt.Line, c Completion) {
	if o.receipts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), receiptTimeout)
	defer cancel()

	r := &receipt.Receipt{
		ID:          c.PaymentID,
		Username:    req.Prefill.Name,
		Gateway:     o.gateway.Name(),
		Amount:      req.Amount,
		MinorAmount: req.MinorAmount,
		Currency:    req.Currency,
		Lines:       lines,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.receipts.Create(ctx, r); err != nil {
		o.lg.Warn("Record receipt failed",
			zap.String("payment_id", c.PaymentID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) count(ctx context.Context, outcome string) {
	o.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("gateway", o.gateway.Name()),
	))
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrScriptLoad):
		return "script_load_failed"
	default:
		return "init_failed"
	}
}
