// Package payment provides the checkout.Gateway implementations: a local
// simulation and an external hosted-checkout gateway.
package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/checkout"
)

var _ checkout.Gateway = (*MockGateway)(nil)

// MockGateway simulates a payment: every dialog completes on its own after a
// fixed delay unless it is dismissed first.
type MockGateway struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*mockDialog
}

type mockDialog struct {
	cb    checkout.Callbacks
	timer *time.Timer
}

// NewMockGateway returns a MockGateway that completes after delay.
func NewMockGateway(delay time.Duration) *MockGateway {
	return &MockGateway{
		delay:   delay,
		pending: make(map[string]*mockDialog),
	}
}

// Name implements checkout.Gateway.
func (m *MockGateway) Name() string { return "mock" }

// Open schedules the simulated completion.
func (m *MockGateway) Open(_ context.Context, req checkout.PaymentRequest, cb checkout.Callbacks) (*checkout.Dialog, error) {
	id := "mock_order_" + uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	d := &mockDialog{cb: cb}
	m.pending[id] = d
	d.timer = time.AfterFunc(m.delay, func() {
		if p := m.take(id); p != nil {
			p.cb.OnComplete(checkout.Completion{
				PaymentID: "mock_pay_" + uuid.NewString(),
				OrderID:   id,
			})
		}
	})

	return &checkout.Dialog{
		ID:      id,
		Gateway: m.Name(),
		OrderID: id,
		Request: req,
	}, nil
}

// Resolve ends a pending simulated dialog early.
func (m *MockGateway) Resolve(_ context.Context, dialogID string, out checkout.Outcome) error {
	m.mu.Lock()
	p, ok := m.pending[dialogID]
	if ok && !p.timer.Stop() {
		// The timer already fired and owns the dialog.
		ok = false
	}
	if ok {
		delete(m.pending, dialogID)
	}
	m.mu.Unlock()

	if !ok {
		return checkout.ErrUnknownDialog
	}

	switch out.Kind {
	case checkout.OutcomeCompleted:
		c := out.Completion
		if c.PaymentID == "" {
			c.PaymentID = "mock_pay_" + uuid.NewString()
		}
		c.OrderID = dialogID
		p.cb.OnComplete(c)
	default:
		p.cb.OnDismiss()
	}
	return nil
}

// Pending returns the number of open dialogs.
func (m *MockGateway) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *MockGateway) take(id string) *mockDialog {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pending[id]
	delete(m.pending, id)
	return p
}
