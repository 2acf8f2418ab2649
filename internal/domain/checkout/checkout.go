// Package checkout drives a payment attempt for the cart of a signed-in user
// through a pluggable payment Gateway.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotAuthenticated rejects checkout attempts without a signed-in user.
	ErrNotAuthenticated = errors.New("please login to checkout")
	// ErrCheckoutInProgress rejects a checkout while another one is processing.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	// ErrEmptyCart rejects a checkout of an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrScriptLoad is returned by gateways whose client script is unreachable.
	ErrScriptLoad = errors.New("payment script failed to load")
	// ErrGatewayInit is returned when the payment dialog cannot be opened.
	ErrGatewayInit = errors.New("payment initialization failed")
	// ErrUnknownDialog is returned when resolving a dialog that is not pending.
	ErrUnknownDialog = errors.New("unknown payment dialog")
)

// User-facing notices.
const (
	NoticeLoginRequired = "Please login to checkout"
	NoticeScriptLoad    = "Payment SDK failed to load. Are you online?"
	NoticeInitFailed    = "Payment Initialization Failed"
	NoticeSuccessPrefix = "Payment Successful! Payment ID: "
)

// Prefill is the contact information shown pre-filled in the payment dialog.
type Prefill struct {
	Name    string
	Email   string
	Contact string
}

// PaymentRequest describes the payment a gateway should collect.
type PaymentRequest struct {
	// Reference identifies this checkout attempt.
	Reference string
	// Amount is the cart total in the catalog base currency.
	Amount decimal.Decimal
	// MinorAmount is Amount converted to the display currency's minor unit.
	MinorAmount int64
	Currency    string
	Name        string
	Description string
	Image       string
	ThemeColor  string
	Prefill     Prefill
}

// Completion is the gateway's report of a successful payment.
type Completion struct {
	PaymentID string
	OrderID   string
	Signature string
}

// Callbacks are invoked by a gateway when a dialog ends. Exactly one of them
// is called per opened dialog, possibly from another goroutine.
type Callbacks struct {
	OnComplete func(Completion)
	OnDismiss  func()
}

// Dialog is an opened payment dialog, handed to the browser.
type Dialog struct {
	ID      string
	Gateway string
	// ScriptURL is the client script the browser must load; empty for
	// gateways that need none.
	ScriptURL string
	// Key is the public merchant key passed to the client script.
	Key     string
	OrderID string
	Request PaymentRequest
}

// OutcomeKind tells how a dialog ended.
type OutcomeKind int

const (
	// OutcomeCompleted reports a finished payment.
	OutcomeCompleted OutcomeKind = iota + 1
	// OutcomeDismissed reports that the user closed the dialog.
	OutcomeDismissed
)

// Outcome is the browser-reported end of a dialog.
type Outcome struct {
	Kind       OutcomeKind
	Completion Completion
}

// Gateway collects payments.
type Gateway interface {
	// Name identifies the gateway in dialogs and receipts.
	Name() string
	// Open starts a payment dialog. Open must not call cb synchronously.
	Open(ctx context.Context, req PaymentRequest, cb Callbacks) (*Dialog, error)
	// Resolve ends a pending dialog with the given outcome, which triggers
	// the matching callback.
	Resolve(ctx context.Context, dialogID string, out Outcome) error
}

// Converter turns base-currency amounts into gateway amounts.
type Converter interface {
	MinorUnits(amount decimal.Decimal) int64
	Currency() string
}
