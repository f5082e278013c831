package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/market/internal/domain/auth"
	"github.com/xenking/market/internal/domain/cart"
	"github.com/xenking/market/internal/domain/catalog"
	"github.com/xenking/market/internal/domain/discount"
	"github.com/xenking/market/internal/domain/order"
	"github.com/xenking/market/internal/domain/payment"
	"github.com/xenking/market/internal/handler"
	"github.com/xenking/market/internal/messaging"
	"github.com/xenking/market/internal/repository"
	"github.com/xenking/market/internal/session"
	"github.com/xenking/market/pkg/health"
	"github.com/xenking/market/pkg/httpmiddleware"
)

const meterName = "github.com/xenking/market"

// providers are the telemetry providers the processes report to.
type providers struct {
	tracer trace.TracerProvider
	meter  metric.MeterProvider
}

func providersOf(m *app.Telemetry) providers {
	return providers{tracer: m.TracerProvider(), meter: m.MeterProvider()}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the API process.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	return serve(ctx, lg, providersOf(m), cfg)
}

func serve(ctx context.Context, lg *zap.Logger, tel providers, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	if cfg.JWTSecret == "" {
		return errors.New("jwt secret is required: set MARKET_JWT_SECRET")
	}
	setupTelemetry(tel)

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := openRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	sessions := session.NewStore(rdb, cfg.Session.TTL)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(sessions))
	if len(cfg.Kafka.Brokers) > 0 {
		healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.KafkaCheck(cfg.Kafka.Brokers),
			health.WithThresholds(3, 1),
		)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	rates, err := cfg.ShippingRates()
	if err != nil {
		return err
	}
	catalogRepo := repository.NewCatalogRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool, rates)

	// Domain services.
	picker, err := catalog.NewPicker(cfg.OfferPolicy)
	if err != nil {
		return err
	}
	resolver := discount.NewResolver(repository.NewDiscountRepository(pool), cfg.Location())
	carts := cart.NewService(session.NewCartStore(sessions), catalogRepo, picker)
	orders := order.NewService(catalogRepo, resolver, settingsRepo, orderRepo)

	g, ctx := errgroup.WithContext(ctx)

	var queue payment.Queue
	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		queue = producer
		lg.Info("Payments go to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		processor, err := payment.NewProcessor(paymentRepo, tel.meter.Meter(meterName))
		if err != nil {
			return errors.Wrap(err, "create payment processor")
		}
		local := payment.NewLocalQueue(cfg.Payments.QueueSize, cfg.Payments.Workers)
		queue = local
		g.Go(func() error {
			return runLocalPayments(ctx, processor, local)
		})
		lg.Info("Payments settled in process", zap.Int("workers", cfg.Payments.Workers))
	}
	payments := payment.NewService(paymentRepo, orders, queue)

	var limiter httpmiddleware.Limiter
	if cfg.RateLimit.Shared {
		limiter = httpmiddleware.NewRedisLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
	} else {
		mem := httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		g.Go(func() error {
			mem.RunCleanup(ctx)
			return nil
		})
		limiter = mem
	}

	// HTTP handlers.
	h := handler.New(
		handler.Config{SessionTTL: cfg.Session.TTL, SecureCookie: cfg.Session.Secure},
		catalogRepo,
		carts,
		orders,
		payments,
		resolver,
		sessions,
		auth.NewVerifier(cfg.JWTSecret),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{"Location", httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}, limiter),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("market-api", routeFinder, tel.tracer, tel.meter),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// setupTelemetry installs the process tracer provider and the W3C
// propagator carried in kafka headers.
func setupTelemetry(tel providers) {
	otel.SetTracerProvider(tel.tracer)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func openDatabase(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := repository.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return pool, nil
}

func openRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return redis.NewClient(opts), nil
}
