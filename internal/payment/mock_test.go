package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/checkout"
)

func TestMockGateway_CompletesAfterDelay(t *testing.T) {
	g := NewMockGateway(10 * time.Millisecond)
	rec := newRecorder()

	d, err := g.Open(context.Background(), request(), rec.callbacks())
	require.NoError(t, err)
	assert.Equal(t, "mock", d.Gateway)
	assert.True(t, strings.HasPrefix(d.ID, "mock_order_"))
	assert.Equal(t, d.ID, d.OrderID)
	assert.Empty(t, d.ScriptURL)

	select {
	case c := <-rec.completed:
		assert.True(t, strings.HasPrefix(c.PaymentID, "mock_pay_"))
		assert.Equal(t, d.ID, c.OrderID)
	case <-time.After(time.Second):
		t.Fatal("mock payment did not complete")
	}
	assert.Zero(t, g.Pending())

	err = g.Resolve(context.Background(), d.ID, checkout.Outcome{Kind: checkout.OutcomeDismissed})
	require.ErrorIs(t, err, checkout.ErrUnknownDialog)
}

func TestMockGateway_Dismiss(t *testing.T) {
	g := NewMockGateway(time.Hour)
	rec := newRecorder()

	d, err := g.Open(context.Background(), request(), rec.callbacks())
	require.NoError(t, err)
	assert.Equal(t, 1, g.Pending())

	require.NoError(t, g.Resolve(context.Background(), d.ID, checkout.Outcome{Kind: checkout.OutcomeDismissed}))

	select {
	case <-rec.dismissed:
	default:
		t.Fatal("dismiss callback not invoked")
	}
	assert.Empty(t, rec.completed)
	assert.Zero(t, g.Pending())
}

func TestMockGateway_ResolveCompleted(t *testing.T) {
	g := NewMockGateway(time.Hour)
	rec := newRecorder()

	d, err := g.Open(context.Background(), request(), rec.callbacks())
	require.NoError(t, err)

	require.NoError(t, g.Resolve(context.Background(), d.ID, checkout.Outcome{
		Kind:       checkout.OutcomeCompleted,
		Completion: checkout.Completion{PaymentID: "pay_1"},
	}))

	c := <-rec.completed
	assert.Equal(t, "pay_1", c.PaymentID)
	assert.Equal(t, d.ID, c.OrderID)
}

func TestMockGateway_UnknownDialog(t *testing.T) {
	g := NewMockGateway(time.Hour)

	err := g.Resolve(context.Background(), "nope", checkout.Outcome{Kind: checkout.OutcomeDismissed})
	require.ErrorIs(t, err, checkout.ErrUnknownDialog)
}
