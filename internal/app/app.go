package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/fakestore"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/payment"
	"github.com/xenking/storefront/internal/price"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront"

// Telemetry provides the tracer and meter providers.
type Telemetry = httpmiddleware.Telemetry

// service holds the wired application graph.
type service struct {
	handler  http.Handler
	health   *health.Checker
	sessions *session.Registry
	limiter  *httpmiddleware.RateLimiter
	close    func()
}

// newService creates every dependency and the middleware-wrapped handler.
// The caller owns the returned service and must call close.
func newService(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) (_ *service, rerr error) {
	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr != nil {
			store.close()
		}
	}()

	pc, err := cfg.PriceConfig()
	if err != nil {
		return nil, err
	}
	prices, err := price.New(pc)
	if err != nil {
		return nil, errors.Wrap(err, "create price formatter")
	}

	catalog, err := fakestore.New(cfg.Catalog.BaseURL,
		fakestore.WithHTTPClient(&http.Client{Timeout: cfg.Catalog.Timeout}),
		fakestore.WithMeterProvider(m.MeterProvider()),
		fakestore.WithTransportOptions(otelhttp.WithTracerProvider(m.TracerProvider())),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create catalog client")
	}

	gateway, err := newGateway(cfg.Payment, m)
	if err != nil {
		return nil, err
	}

	meter := m.MeterProvider().Meter(serviceName)
	outcomes, err := meter.Int64Counter("checkout.outcomes",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}

	sessions := session.NewRegistry(session.Deps{
		Catalog:  catalog,
		Users:    auth.NewKVRepository(store.kv),
		Gateway:  gateway,
		Prices:   prices,
		Receipts: store.receipts,
		Checkout: checkout.Config{
			MerchantName:   cfg.Payment.MerchantName,
			Description:    cfg.Payment.Description,
			Image:          cfg.Payment.Image,
			ThemeColor:     cfg.Payment.ThemeColor,
			PrefillEmail:   cfg.Payment.PrefillEmail,
			PrefillContact: cfg.Payment.PrefillContact,
		},
		Tracer:   m.TracerProvider().Tracer(serviceName),
		Outcomes: outcomes,
		Logger:   lg,
	}, session.WithTTL(cfg.Session.TTL))

	h := handler.New(
		handler.Config{CookieSecure: cfg.Session.CookieSecure, CookieMaxAge: cfg.Session.TTL},
		sessions,
		auth.NewMockAuthenticator(cfg.Auth.MockDelay),
		catalog,
		prices,
		store.receipts,
	)

	// Health check service.
	healthSvc := health.New()
	healthSvc.Register(health.Readiness, "storage", 5*time.Second, store.ping)
	healthSvc.Register(health.Readiness, "catalog", 5*time.Second,
		health.HTTPCheck(&http.Client{Timeout: 5 * time.Second}, cfg.Catalog.BaseURL+"/products/categories"),
	)
	healthSvc.Register(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Rate:  cfg.RateLimit.Rate,
		Burst: cfg.RateLimit.Burst,
	})

	return &service{
		handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			limiter.Middleware(),
			httpmiddleware.Instrument(serviceName, m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Gzip(pgzip.DefaultCompression),
		),
		health:   healthSvc,
		sessions: sessions,
		limiter:  limiter,
		close:    store.close,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("payment", cfg.Payment.Mode),
	)

	svc, err := newService(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	svc.health.Start(ctx, 10*time.Second)
	defer svc.health.Stop()
	svc.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Mock logins and payments hold the request for a few seconds.
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler:        svc.handler,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.sessions.Run(gctx, cfg.Session.SweepInterval)
	})
	g.Go(func() error {
		return svc.limiter.Run(gctx)
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gctx.Done()
		svc.health.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

func newGateway(cfg PaymentConfig, m Telemetry) (checkout.Gateway, error) {
	switch cfg.Mode {
	case "mock":
		return payment.NewMockGateway(cfg.MockDelay), nil
	case "external":
		client := &http.Client{
			Timeout: 15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
		}
		return payment.NewExternalGateway(payment.ExternalConfig{
			KeyID:     cfg.KeyID,
			KeySecret: cfg.KeySecret,
			ScriptURL: cfg.ScriptURL,
			APIURL:    cfg.APIURL,
			DialogTTL: cfg.DialogTTL,
		}, client), nil
	default:
		return nil, errors.Errorf("unknown payment mode %q", cfg.Mode)
	}
}
