package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/market/internal/domain/payment"
	"github.com/xenking/market/internal/messaging"
	"github.com/xenking/market/internal/repository"
	"github.com/xenking/market/pkg/health"
)

// RunWorker settles payment jobs read from kafka. Transactions left pending
// by an earlier run are settled first. Health checks are served on cfg.Addr.
func RunWorker(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	return work(ctx, lg, providersOf(m), cfg)
}

func work(ctx context.Context, lg *zap.Logger, tel providers, cfg *Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers are required: set MARKET_KAFKA_BROKERS")
	}
	setupTelemetry(tel)

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	processor, err := payment.NewProcessor(repository.NewPaymentRepository(pool), tel.meter.Meter(meterName))
	if err != nil {
		return errors.Wrap(err, "create payment processor")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("kafka", 5*time.Second, health.KafkaCheck(cfg.Kafka.Brokers),
		health.WithThresholds(3, 1),
	)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID,
		messaging.WithStartOffset(kafka.FirstOffset),
	)
	defer func() { _ = consumer.Close() }()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "health server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := settlePending(ctx, processor); err != nil {
			return err
		}
		healthSvc.SetReady(true)
		lg.Info("Consuming payment jobs",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
			zap.String("group", cfg.Kafka.GroupID),
		)
		return consumer.Consume(ctx, processor.Handle)
	})
	return g.Wait()
}

// runLocalPayments drains the in-process queue until ctx is cancelled.
func runLocalPayments(ctx context.Context, processor *payment.Processor, queue *payment.LocalQueue) error {
	if err := settlePending(ctx, processor); err != nil {
		return err
	}
	return queue.Run(ctx, processor.Handle)
}

func settlePending(ctx context.Context, processor *payment.Processor) error {
	n, err := processor.SettlePending(ctx)
	if err != nil {
		return errors.Wrap(err, "settle pending payments")
	}
	if n > 0 {
		zctx.From(ctx).Info("Settled pending payments", zap.Int("count", n))
	}
	return nil
}
