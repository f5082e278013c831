//go:build integration

package messaging_test

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/market/internal/domain/payment"
	"github.com/xenking/market/internal/messaging"
	"github.com/xenking/market/internal/testenv"
)

func TestProducerConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers := testenv.Kafka(ctx, t)
	topic := testenv.Topic(t)
	testenv.CreateTopic(ctx, t, brokers[0], topic)

	producer := messaging.NewProducer(brokers, topic)
	defer producer.Close()

	jobs := []payment.Job{
		{TransactionID: "tx-1", OrderID: "o-1"},
		{TransactionID: "tx-2", OrderID: "o-2"},
	}
	for _, job := range jobs {
		require.NoError(t, producer.Enqueue(ctx, job))
	}

	consumer := messaging.NewConsumer(brokers, topic, "payments-test", messaging.WithStartOffset(kafka.FirstOffset))
	defer consumer.Close()

	consumeCtx, stop := context.WithCancel(ctx)
	got := make(chan payment.Job, len(jobs))
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumeCtx, func(_ context.Context, job payment.Job) error {
			got <- job
			return nil
		})
	}()

	var received []payment.Job
	for range jobs {
		select {
		case job := <-got:
			received = append(received, job)
		case <-ctx.Done():
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.ElementsMatch(t, jobs, received)

	stop()
	require.NoError(t, <-done, "cancellation is a clean stop")
}
