package messaging

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/market/internal/domain/payment"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// Consumer reads payment jobs from a kafka topic as part of a consumer group.
type Consumer struct {
	reader  *kafka.Reader
	topic   string
	groupID string
}

// ConsumerOption adjusts the reader configuration of a Consumer.
type ConsumerOption func(*kafka.ReaderConfig)

// WithStartOffset sets where a group with no committed offset starts
// reading, kafka.FirstOffset or kafka.LastOffset.
func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

// NewConsumer creates a Consumer reading topic as member of groupID.
func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer{
		reader:  kafka.NewReader(cfg),
		topic:   topic,
		groupID: groupID,
	}
}

// Consume hands every message to handle and commits it once handled. A
// message that cannot be decoded, or that names an unknown transaction, is
// logged and committed so it does not block the partition. Consume returns
// when ctx is cancelled or the handler fails; the failed message is
// redelivered on the next run.
func (c *Consumer) Consume(ctx context.Context, handle payment.Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}

		if err := c.processMessage(ctx, msg, handle); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handle payment.Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, headers{msg: &msg})

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	job, err := DecodeJob(msg.Value)
	if err != nil {
		zctx.From(ctx).Error("Dropping malformed payment job",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		span.RecordError(err)
		return nil
	}

	if err := handle(spanCtx, job); err != nil {
		span.RecordError(err)
		if errors.Is(err, payment.ErrNotFound) {
			zctx.From(ctx).Warn("Dropping payment job for unknown transaction",
				zap.Int64("offset", msg.Offset),
				zap.String("transaction_id", job.TransactionID),
			)
			return nil
		}
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "handle transaction %s", job.TransactionID)
	}
	return nil
}

// Close leaves the consumer group and closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
