package messaging

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/market/internal/domain/payment"
)

var producerTracer = otel.Tracer("messaging/producer")

var _ payment.Queue = (*Producer)(nil)

// Producer publishes payment jobs to a kafka topic. Jobs are keyed by order
// so all attempts for one order land on the same partition.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a Producer writing to topic on brokers.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
		},
	}
}

// Enqueue implements payment.Queue.
func (p *Producer) Enqueue(ctx context.Context, job payment.Job) error {
	msg := kafka.Message{
		Key:   []byte(job.OrderID),
		Value: EncodeJob(job),
	}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(job.OrderID),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, headers{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
