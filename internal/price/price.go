// Package price converts base-currency amounts into the display currency and
// renders them as localized strings.
package price

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Config describes the display currency.
type Config struct {
	// Rate is the fixed multiplier from the catalog base currency to the
	// display currency.
	Rate decimal.Decimal
	// Locale is a BCP 47 tag used for digit grouping, e.g. "en-IN".
	Locale string
	// Currency is the ISO 4217 code of the display currency.
	Currency string
	// Symbol is prepended to every formatted amount.
	Symbol string
}

// Formatter renders prices in the display currency with zero fractional
// digits. It is safe for concurrent use.
type Formatter struct {
	rate    decimal.Decimal
	unit    currency.Unit
	scale   int32
	symbol  string
	printer *message.Printer
}

// New validates cfg and returns a Formatter.
func New(cfg Config) (*Formatter, error) {
	if cfg.Rate.IsNegative() || cfg.Rate.IsZero() {
		return nil, errors.Errorf("conversion rate must be positive, got %s", cfg.Rate)
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, errors.Wrapf(err, "parse locale %q", cfg.Locale)
	}
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		return nil, errors.Wrapf(err, "parse currency %q", cfg.Currency)
	}
	scale, _ := currency.Standard.Rounding(unit)

	return &Formatter{
		rate:    cfg.Rate,
		unit:    unit,
		scale:   int32(scale),
		symbol:  cfg.Symbol,
		printer: message.NewPrinter(tag),
	}, nil
}

// Convert returns amount expressed in the display currency.
func (f *Formatter) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(f.rate)
}

// Format returns the localized display string for a base-currency amount,
// e.g. 100 -> "₹8,300" with the default INR configuration.
func (f *Formatter) Format(amount decimal.Decimal) string {
	whole := f.Convert(amount).Round(0).IntPart()
	return f.symbol + f.printer.Sprint(number.Decimal(whole, number.MaxFractionDigits(0)))
}

// MinorUnits converts a base-currency amount into an integer amount of the
// display currency's minor unit (paise for INR), as payment gateways expect.
func (f *Formatter) MinorUnits(amount decimal.Decimal) int64 {
	return f.Convert(amount).Shift(f.scale).Round(0).IntPart()
}

// Currency returns the ISO 4217 code of the display currency.
func (f *Formatter) Currency() string {
	return f.unit.String()
}
