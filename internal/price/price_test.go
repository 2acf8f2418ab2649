package price

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newINR(t *testing.T) *Formatter {
	t.Helper()
	f, err := New(Config{
		Rate:     decimal.NewFromInt(83),
		Locale:   "en-IN",
		Currency: "INR",
		Symbol:   "₹",
	})
	require.NoError(t, err)
	return f
}

func TestFormatter_Format(t *testing.T) {
	f := newINR(t)

	tests := []struct {
		name   string
		amount decimal.Decimal
		want   string
	}{
		{name: "zero", amount: decimal.Zero, want: "₹0"},
		{name: "whole", amount: decimal.NewFromInt(100), want: "₹8,300"},
		{name: "rounds half up", amount: decimal.RequireFromString("1.5"), want: "₹125"},
		{name: "drops fraction", amount: decimal.RequireFromString("1.2"), want: "₹100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Format(tt.amount))
		})
	}
}

func TestFormatter_MinorUnits(t *testing.T) {
	f := newINR(t)

	assert.Equal(t, int64(830000), f.MinorUnits(decimal.NewFromInt(100)))
	assert.Equal(t, int64(165917), f.MinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(0), f.MinorUnits(decimal.Zero))
	assert.Equal(t, "INR", f.Currency())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero rate", cfg: Config{Rate: decimal.Zero, Locale: "en-IN", Currency: "INR"}},
		{name: "negative rate", cfg: Config{Rate: decimal.NewFromInt(-1), Locale: "en-IN", Currency: "INR"}},
		{name: "bad currency", cfg: Config{Rate: decimal.NewFromInt(1), Locale: "en-IN", Currency: "XX"}},
		{name: "bad locale", cfg: Config{Rate: decimal.NewFromInt(1), Locale: "!!", Currency: "INR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
		})
	}
}
