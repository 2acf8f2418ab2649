package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/price"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Catalog   CatalogConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Payment   PaymentConfig
	Price     PriceConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CatalogConfig points at the remote product catalog.
type CatalogConfig struct {
	BaseURL string        `default:"https://fakestoreapi.com" usage:"Catalog REST base URL" flag:"catalog-url"`
	Timeout time.Duration `default:"10s" usage:"Catalog request timeout"`
}

// StorageConfig selects the durable store for auth records and receipts.
type StorageConfig struct {
	Driver string `default:"sqlite" usage:"Storage driver: memory, sqlite or postgres"`
	// DSN is a SQLite file DSN or a PostgreSQL URL.
	DSN string `default:"file:storefront.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)" usage:"Storage DSN (STOREFRONT_STORAGE_DSN or DATABASE_URL for postgres)"`
}

// AuthConfig controls the mock authenticator.
type AuthConfig struct {
	MockDelay time.Duration `default:"1.5s" usage:"Simulated login latency"`
}

// PaymentConfig selects and configures the payment gateway.
type PaymentConfig struct {
	Mode           string        `default:"mock" usage:"Payment gateway: mock or external"`
	MockDelay      time.Duration `default:"2s" usage:"Simulated payment latency"`
	ScriptURL      string        `default:"https://checkout.razorpay.com/v1/checkout.js" usage:"Hosted checkout script URL"`
	APIURL         string        `default:"" usage:"Gateway REST API for order creation"`
	KeyID          string        `default:"" usage:"Public merchant key"`
	KeySecret      string        `default:"" usage:"Merchant secret used to verify completions"`
	DialogTTL      time.Duration `default:"15m" usage:"Dismiss payment dialogs left unanswered for this long"`
	MerchantName   string        `default:"ShopMaster" usage:"Merchant name shown in the dialog"`
	Description    string        `default:"Test Transaction" usage:"Payment description"`
	Image          string        `default:"" usage:"Merchant logo URL"`
	ThemeColor     string        `default:"#2563EB" usage:"Dialog theme color"`
	PrefillEmail   string        `default:"test@example.com" usage:"Prefilled customer email"`
	PrefillContact string        `default:"9999999999" usage:"Prefilled customer phone"`
}

// PriceConfig describes the display currency.
type PriceConfig struct {
	Rate     string `default:"83" usage:"Multiplier from catalog prices to the display currency"`
	Locale   string `default:"en-IN" usage:"Locale for digit grouping"`
	Currency string `default:"INR" usage:"ISO 4217 display currency"`
	Symbol   string `default:"₹" usage:"Currency symbol"`
}

// SessionConfig controls browser session lifetime.
type SessionConfig struct {
	TTL           time.Duration `default:"24h" usage:"Idle session lifetime"`
	SweepInterval time.Duration `default:"5m" usage:"Idle session sweep interval"`
	CookieSecure  bool          `default:"false" usage:"Mark the session cookie Secure" flag:"cookie-secure"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Rate  float64 `default:"20" usage:"Sustained requests per second per client"`
	Burst int     `default:"40" usage:"Burst size per client"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Storage.Driver == "postgres" && os.Getenv("STOREFRONT_STORAGE_DSN") == "" {
		c.Storage.DSN = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks option values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return errors.Errorf("storage DSN is required for driver %q", c.Storage.Driver)
	}

	switch c.Payment.Mode {
	case "mock":
	case "external":
		if c.Payment.KeyID == "" {
			return errors.New("payment key id is required in external mode")
		}
		if c.Payment.ScriptURL == "" {
			return errors.New("payment script URL is required in external mode")
		}
	default:
		return errors.Errorf("unknown payment mode %q", c.Payment.Mode)
	}

	if _, err := c.PriceConfig(); err != nil {
		return err
	}
	return nil
}

// PriceConfig converts the price section into a price.Config.
func (c *Config) PriceConfig() (price.Config, error) {
	rate, err := decimal.NewFromString(c.Price.Rate)
	if err != nil {
		return price.Config{}, errors.Wrapf(err, "parse price rate %q", c.Price.Rate)
	}
	return price.Config{
		Rate:     rate,
		Locale:   c.Price.Locale,
		Currency: c.Price.Currency,
		Symbol:   c.Price.Symbol,
	}, nil
}
