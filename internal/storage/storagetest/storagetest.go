// Package storagetest holds the behaviour checks shared by every storage
// backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/receipt"
	"github.com/xenking/storefront/internal/storage"
)

// Backend is a store under test.
type Backend interface {
	storage.KV
	receipt.Repository
}

// Run runs the KV and receipt checks against s. The store must be empty.
func Run(t *testing.T, s Backend) {
	t.Helper()

	t.Run("KV", func(t *testing.T) { testKV(t, s) })
	t.Run("Receipts", func(t *testing.T) { testReceipts(t, s) })
}

func testKV(t *testing.T, s storage.KV) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "sess-1/user", []byte(`{"username":"alice"}`)))
	got, err := s.Get(ctx, "sess-1/user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice"}`, string(got))

	require.NoError(t, s.Set(ctx, "sess-1/user", []byte(`{"username":"bob"}`)))
	got, err = s.Get(ctx, "sess-1/user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"bob"}`, string(got))

	require.NoError(t, s.Delete(ctx, "sess-1/user"))
	_, err = s.Get(ctx, "sess-1/user")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "sess-1/user"), "deleting a missing key")
}

func testReceipts(t *testing.T, s receipt.Repository) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &receipt.Receipt{
		ID:          "pay_1",
		Username:    "alice",
		Gateway:     "mock",
		Amount:      decimal.RequireFromString("129.98"),
		MinorAmount: 1078834,
		Currency:    "INR",
		Lines: []receipt.Line{
			{ProductID: 1, Title: "Backpack", Price: decimal.RequireFromString("109.95"), Quantity: 1},
			{ProductID: 7, Title: "Ring", Price: decimal.RequireFromString("9.99"), Quantity: 2},
		},
		CreatedAt: base,
	}
	second := &receipt.Receipt{
		ID:          "pay_2",
		Username:    "alice",
		Gateway:     "mock",
		Amount:      decimal.RequireFromString("10"),
		MinorAmount: 83000,
		Currency:    "INR",
		Lines:       []receipt.Line{{ProductID: 3, Title: "Jacket", Price: decimal.RequireFromString("10"), Quantity: 1}},
		CreatedAt:   base.Add(time.Minute),
	}
	other := &receipt.Receipt{
		ID:        "pay_3",
		Username:  "bob",
		Gateway:   "external",
		Amount:    decimal.RequireFromString("1"),
		Currency:  "INR",
		CreatedAt: base,
	}
	for _, r := range []*receipt.Receipt{first, second, other} {
		require.NoError(t, s.Create(ctx, r))
	}

	got, err := s.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pay_2", got[0].ID, "newest first")
	assert.Equal(t, "pay_1", got[1].ID)

	r := got[1]
	assert.Equal(t, "alice", r.Username)
	assert.Equal(t, "mock", r.Gateway)
	assert.True(t, first.Amount.Equal(r.Amount), "amount %s", r.Amount)
	assert.EqualValues(t, 1078834, r.MinorAmount)
	assert.Equal(t, "INR", r.Currency)
	assert.True(t, base.Equal(r.CreatedAt), "created at %s", r.CreatedAt)
	require.Len(t, r.Lines, 2)
	assert.Equal(t, "Ring", r.Lines[1].Title)
	assert.Equal(t, 2, r.Lines[1].Quantity)
	assert.True(t, decimal.RequireFromString("9.99").Equal(r.Lines[1].Price))

	got, err = s.ListByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Lines)

	got, err = s.ListByUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, got)
}
