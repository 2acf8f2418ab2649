package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/checkout"
)

// ErrSignatureMismatch is returned when a completion is not signed with the
// merchant secret.
var ErrSignatureMismatch = errors.New("payment signature mismatch")

// ExternalConfig configures an ExternalGateway.
type ExternalConfig struct {
	// KeyID is the public merchant key handed to the browser.
	KeyID string
	// KeySecret signs completions. When empty, signatures are not checked
	// and no server-side order is created.
	KeySecret string
	// ScriptURL is the hosted checkout script.
	ScriptURL string
	// APIURL is the gateway REST endpoint used to create orders. Optional.
	APIURL string
	// DialogTTL dismisses dialogs the browser never reports back on.
	// Defaults to DefaultDialogTTL.
	DialogTTL time.Duration
}

// DefaultDialogTTL is the lifetime of an unanswered dialog.
const DefaultDialogTTL = 15 * time.Minute

var _ checkout.Gateway = (*ExternalGateway)(nil)

// ExternalGateway hands the payment to a hosted checkout dialog in the
// browser. The client script is loaded once; completions come back through
// Resolve.
type ExternalGateway struct {
	cfg    ExternalConfig
	client *http.Client

	loadMu sync.Mutex
	loaded bool

	mu      sync.Mutex
	pending map[string]*externalDialog
}

type externalDialog struct {
	cb    checkout.Callbacks
	timer *time.Timer
}

// NewExternalGateway returns an ExternalGateway using client for outbound
// requests.
func NewExternalGateway(cfg ExternalConfig, client *http.Client) *ExternalGateway {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.DialogTTL <= 0 {
		cfg.DialogTTL = DefaultDialogTTL
	}
	return &ExternalGateway{
		cfg:     cfg,
		client:  client,
		pending: make(map[string]*externalDialog),
	}
}

// Name implements checkout.Gateway.
func (g *ExternalGateway) Name() string { return "external" }

// Open loads the checkout script if needed, creates the gateway order and
// registers the dialog.
func (g *ExternalGateway) Open(ctx context.Context, req checkout.PaymentRequest, cb checkout.Callbacks) (*checkout.Dialog, error) {
	if err := g.loadScript(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", checkout.ErrScriptLoad, err)
	}
	if err := validate(g.cfg, req); err != nil {
		return nil, fmt.Errorf("%w: %w", checkout.ErrGatewayInit, err)
	}

	orderID, err := g.createOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", checkout.ErrGatewayInit, err)
	}

	g.mu.Lock()
	d := &externalDialog{cb: cb}
	g.pending[orderID] = d
	d.timer = time.AfterFunc(g.cfg.DialogTTL, func() { g.expire(orderID, d) })
	g.mu.Unlock()

	return &checkout.Dialog{
		ID:        orderID,
		Gateway:   g.Name(),
		ScriptURL: g.cfg.ScriptURL,
		Key:       g.cfg.KeyID,
		OrderID:   orderID,
		Request:   req,
	}, nil
}

// Resolve ends a pending dialog. Completions are verified against the
// merchant secret when one is configured; a rejected completion leaves the
// dialog pending.
func (g *ExternalGateway) Resolve(_ context.Context, dialogID string, out checkout.Outcome) error {
	g.mu.Lock()
	d, ok := g.pending[dialogID]
	if !ok {
		g.mu.Unlock()
		return checkout.ErrUnknownDialog
	}

	if out.Kind == checkout.OutcomeCompleted {
		c := out.Completion
		if c.PaymentID == "" {
			g.mu.Unlock()
			return errors.Wrap(ErrSignatureMismatch, "payment id is required")
		}
		if g.cfg.KeySecret != "" && !VerifySignature(g.cfg.KeySecret, dialogID, c.PaymentID, c.Signature) {
			g.mu.Unlock()
			return ErrSignatureMismatch
		}
	}
	delete(g.pending, dialogID)
	d.timer.Stop()
	g.mu.Unlock()

	switch out.Kind {
	case checkout.OutcomeCompleted:
		c := out.Completion
		c.OrderID = dialogID
		d.cb.OnComplete(c)
	default:
		d.cb.OnDismiss()
	}
	return nil
}

// expire dismisses a dialog that outlived DialogTTL.
func (g *ExternalGateway) expire(id string, d *externalDialog) {
	g.mu.Lock()
	if g.pending[id] != d {
		g.mu.Unlock()
		return
	}
	delete(g.pending, id)
	g.mu.Unlock()

	d.cb.OnDismiss()
}

// Pending returns the number of open dialogs.
func (g *ExternalGateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// loadScript fetches the checkout script once. A failed load is retried by
// the next call.
func (g *ExternalGateway) loadScript(ctx context.Context) error {
	g.loadMu.Lock()
	defer g.loadMu.Unlock()

	if g.loaded {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.ScriptURL, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build script request")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "fetch script")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetch script: status %d", resp.StatusCode)
	}
	g.loaded = true
	return nil
}

// createOrder registers the payment with the gateway API. Without an API URL
// or secret a local order id is issued.
func (g *ExternalGateway) createOrder(ctx context.Context, req checkout.PaymentRequest) (string, error) {
	if g.cfg.APIURL == "" || g.cfg.KeySecret == "" {
		return "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(req.MinorAmount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(req.Reference) })
	})

	url := strings.TrimSuffix(g.cfg.APIURL, "/") + "/v1/orders"
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return "", errors.Wrap(err, "build order request")
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)

	resp, err := g.client.Do(hreq)
	if err != nil {
		return "", errors.Wrap(err, "create order")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read order response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errors.Errorf("create order: status %d", resp.StatusCode)
	}

	var id string
	if err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "id" {
			return d.Skip()
		}
		v, err := d.Str()
		id = v
		return err
	}); err != nil {
		return "", errors.Wrap(err, "decode order response")
	}
	if id == "" {
		return "", errors.New("order response has no id")
	}
	return id, nil
}

func validate(cfg ExternalConfig, req checkout.PaymentRequest) error {
	switch {
	case cfg.KeyID == "":
		return errors.New("merchant key is not configured")
	case req.MinorAmount <= 0:
		return errors.Errorf("amount must be positive, got %d", req.MinorAmount)
	case req.Currency == "":
		return errors.New("currency is required")
	}
	return nil
}

// Sign returns the completion signature for an order and payment:
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches Sign in constant time.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hmac.Equal(mac.Sum(nil), got)
}
