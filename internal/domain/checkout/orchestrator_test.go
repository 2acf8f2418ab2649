package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/receipt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Mock implementations ---

type nopUserRepo struct{}

func (nopUserRepo) Load(context.Context, string) (*auth.User, error) { return nil, nil }
func (nopUserRepo) Save(context.Context, string, auth.User) error    { return nil }
func (nopUserRepo) Delete(context.Context, string) error             { return nil }

type fakeConverter struct{}

func (fakeConverter) MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(8300)).Round(0).IntPart()
}

func (fakeConverter) Currency() string { return "INR" }

type fakeGateway struct {
	openErr   error
	openPanic any

	mu    sync.Mutex
	opens int
	req   PaymentRequest
	cb    Callbacks
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Open(_ context.Context, req PaymentRequest, cb Callbacks) (*Dialog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opens++
	if g.openPanic != nil {
		panic(g.openPanic)
	}
	if g.openErr != nil {
		return nil, g.openErr
	}
	g.req = req
	g.cb = cb
	return &Dialog{ID: "dlg-1", Gateway: "fake", Request: req}, nil
}

func (g *fakeGateway) Resolve(_ context.Context, dialogID string, out Outcome) error {
	if dialogID != "dlg-1" {
		return ErrUnknownDialog
	}
	switch out.Kind {
	case OutcomeCompleted:
		g.cb.OnComplete(out.Completion)
	case OutcomeDismissed:
		g.cb.OnDismiss()
	}
	return nil
}

type mockReceipts struct {
	mu      sync.Mutex
	created []receipt.Receipt
	err     error
}

func (m *mockReceipts) Create(_ context.Context, r *receipt.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, *r)
	return m.err
}

func (m *mockReceipts) ListByUser(context.Context, string) ([]receipt.Receipt, error) {
	return nil, nil
}

// --- Helpers ---

type fixture struct {
	cart     *cart.Store
	auth     *auth.Store
	gateway  *fakeGateway
	receipts *mockReceipts
	o        *Orchestrator
}

func newFixture(t *testing.T, signedIn bool) *fixture {
	t.Helper()
	f := &fixture{
		cart:     cart.NewStore(),
		auth:     auth.NewStore("s1", nopUserRepo{}),
		gateway:  &fakeGateway{},
		receipts: &mockReceipts{},
	}
	f.cart.Dispatch(cart.AddToCart{Product: product.Product{
		ID:    1,
		Title: "Backpack",
		Price: decimal.NewFromInt(100),
	}})
	if signedIn {
		f.auth.Dispatch(context.Background(), auth.LoginSuccess{User: auth.User{
			Username:      "johndoe",
			Token:         "tok",
			Authenticated: true,
		}})
	}
	f.o = New(Config{
		MerchantName:   "ShopMaster",
		Description:    "Test Transaction",
		PrefillEmail:   "test@example.com",
		PrefillContact: "9999999999",
	}, f.cart, f.auth, f.gateway, fakeConverter{}, WithReceipts(f.receipts))
	return f
}

// --- Tests ---

func TestCheckout_Unauthenticated(t *testing.T) {
	f := newFixture(t, false)

	d, err := f.o.Checkout(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Nil(t, d)

	assert.Zero(t, f.gateway.opens, "gateway must not be invoked")
	assert.Equal(t, State{}, f.o.State())
	assert.Len(t, f.cart.State().Items, 1, "cart must not be cleared")
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t, true)
	f.cart.Dispatch(cart.ClearCart{})

	_, err := f.o.Checkout(context.Background())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.gateway.opens)
	assert.False(t, f.o.State().Processing)
}

func TestCheckout_BuildsRequest(t *testing.T) {
	f := newFixture(t, true)

	d, err := f.o.Checkout(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)

	req := f.gateway.req
	assert.True(t, decimal.NewFromInt(100).Equal(req.Amount))
	assert.Equal(t, int64(830000), req.MinorAmount)
	assert.Equal(t, "INR", req.Currency)
	assert.Equal(t, "ShopMaster", req.Name)
	assert.Equal(t, Prefill{Name: "johndoe", Email: "test@example.com", Contact: "9999999999"}, req.Prefill)
	assert.NotEmpty(t, req.Reference)

	st := f.o.State()
	assert.True(t, st.Processing)
	require.NotNil(t, st.Dialog)
	assert.Equal(t, "dlg-1", st.Dialog.ID)
}

func TestCheckout_Completion(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.o.Checkout(context.Background())
	require.NoError(t, err)

	err = f.o.Resolve(context.Background(), "dlg-1", Outcome{
		Kind:       OutcomeCompleted,
		Completion: Completion{PaymentID: "pay_123"},
	})
	require.NoError(t, err)

	st := f.o.State()
	assert.False(t, st.Processing)
	assert.Nil(t, st.Dialog)
	assert.Equal(t, "Payment Successful! Payment ID: pay_123", st.Notice)
	assert.Equal(t, "pay_123", st.LastPaymentID)
	assert.True(t, f.cart.State().Empty())

	require.Len(t, f.receipts.created, 1)
	r := f.receipts.created[0]
	assert.Equal(t, "pay_123", r.ID)
	assert.Equal(t, "johndoe", r.Username)
	assert.Equal(t, "fake", r.Gateway)
	require.Len(t, r.Lines, 1)
	assert.Equal(t, "Backpack", r.Lines[0].Title)
}

func TestCheckout_ReceiptFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t, true)
	f.receipts.err = errors.New("db down")

	_, err := f.o.Checkout(context.Background())
	require.NoError(t, err)
	f.gateway.cb.OnComplete(Completion{PaymentID: "pay_1"})

	assert.False(t, f.o.State().Processing)
	assert.True(t, f.cart.State().Empty())
}

func TestCheckout_Dismissal(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.o.Checkout(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.o.Resolve(context.Background(), "dlg-1", Outcome{Kind: OutcomeDismissed}))

	st := f.o.State()
	assert.False(t, st.Processing)
	assert.Len(t, f.cart.State().Items, 1, "dismissal keeps the cart")
	assert.Empty(t, f.receipts.created)
}

func TestCheckout_OpenFailures(t *testing.T) {
	tests := []struct {
		name       string
		openErr    error
		openPanic  any
		wantErr    error
		wantNotice string
	}{
		{
			name:       "script load failure",
			openErr:    errors.Wrap(ErrScriptLoad, "dial tcp"),
			wantErr:    ErrScriptLoad,
			wantNotice: NoticeScriptLoad,
		},
		{
			name:       "initialization error",
			openErr:    errors.Wrap(ErrGatewayInit, "missing key"),
			wantErr:    ErrGatewayInit,
			wantNotice: NoticeInitFailed,
		},
		{
			name:       "initialization panic",
			openPanic:  "nil options",
			wantErr:    ErrGatewayInit,
			wantNotice: NoticeInitFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.gateway.openErr = tt.openErr
			f.gateway.openPanic = tt.openPanic

			_, err := f.o.Checkout(context.Background())
			require.ErrorIs(t, err, tt.wantErr)

			st := f.o.State()
			assert.False(t, st.Processing, "processing must be cleared")
			assert.Equal(t, tt.wantNotice, st.Notice)
			assert.Len(t, f.cart.State().Items, 1, "cart must be untouched")
		})
	}
}

func TestCheckout_InProgress(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.o.Checkout(context.Background())
	require.NoError(t, err)

	_, err = f.o.Checkout(context.Background())
	require.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Equal(t, 1, f.gateway.opens)
	assert.True(t, f.o.State().Processing)
}

func TestCheckout_StaleCallbackIgnored(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.o.Checkout(context.Background())
	require.NoError(t, err)
	stale := f.gateway.cb

	stale.OnDismiss()
	_, err = f.o.Checkout(context.Background())
	require.NoError(t, err)

	// A late completion of the first attempt must not touch the second.
	stale.OnComplete(Completion{PaymentID: "late"})
	assert.True(t, f.o.State().Processing)
	assert.Len(t, f.cart.State().Items, 1)
	assert.Empty(t, f.receipts.created)
}

func TestResolve_UnknownDialog(t *testing.T) {
	f := newFixture(t, true)

	err := f.o.Resolve(context.Background(), "dlg-1", Outcome{Kind: OutcomeDismissed})
	require.ErrorIs(t, err, ErrUnknownDialog, "nothing is pending yet")

	_, err = f.o.Checkout(context.Background())
	require.NoError(t, err)

	err = f.o.Resolve(context.Background(), "other", Outcome{Kind: OutcomeDismissed})
	require.ErrorIs(t, err, ErrUnknownDialog)
	assert.True(t, f.o.State().Processing)
}
