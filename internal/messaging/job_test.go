package messaging

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/market/internal/domain/payment"
)

func TestDecodeJob(t *testing.T) {
	job := payment.Job{TransactionID: "tx-1", OrderID: "o-1"}
	got, err := DecodeJob(EncodeJob(job))
	require.NoError(t, err)
	assert.Equal(t, job, got)

	got, err = DecodeJob([]byte(`{"order_id":"o-2","extra":[1,2],"transaction_id":"tx-2"}`))
	require.NoError(t, err)
	assert.Equal(t, payment.Job{TransactionID: "tx-2", OrderID: "o-2"}, got)

	_, err = DecodeJob([]byte(`{"order_id":"o-3"}`))
	require.Error(t, err)

	_, err = DecodeJob([]byte(`not json`))
	require.Error(t, err)
}

func TestHeaders(t *testing.T) {
	var msg kafka.Message
	c := headers{msg: &msg}

	c.Set("traceparent", "a")
	c.Set("tracestate", "b")
	c.Set("traceparent", "c")

	assert.Equal(t, "c", c.Get("traceparent"))
	assert.Equal(t, "b", c.Get("tracestate"))
	assert.Empty(t, c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "tracestate"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestConsumer_ProcessMessage(t *testing.T) {
	ctx := context.Background()
	c := &Consumer{topic: "payments", groupID: "workers"}
	job := payment.Job{TransactionID: "tx-1", OrderID: "o-1"}

	tests := []struct {
		name    string
		value   []byte
		err     error
		calls   int
		wantErr bool
	}{
		{name: "Handled", value: EncodeJob(job), calls: 1},
		{name: "Malformed", value: []byte(`{"order_id":`), calls: 0},
		{name: "UnknownTransaction", value: EncodeJob(job), err: errors.Wrap(payment.ErrNotFound, "get transaction"), calls: 1},
		{name: "HandlerFailed", value: EncodeJob(job), err: errors.New("database unavailable"), calls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			handle := func(_ context.Context, got payment.Job) error {
				calls++
				assert.Equal(t, job, got)
				return tt.err
			}

			err := c.processMessage(ctx, kafka.Message{Value: tt.value}, handle)
			if tt.wantErr {
				require.ErrorContains(t, err, "handle transaction tx-1")
			} else {
				require.NoError(t, err, "the message is committed")
			}
			assert.Equal(t, tt.calls, calls)
		})
	}
}
