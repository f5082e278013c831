package messaging

import (
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

// headers exposes kafka message headers as a propagation.TextMapCarrier.
// Set replaces an existing header so a retried send carries one traceparent.
type headers struct {
	msg *kafka.Message
}

var _ propagation.TextMapCarrier = headers{}

func (h headers) Get(key string) string {
	if i := h.index(key); i >= 0 {
		return string(h.msg.Headers[i].Value)
	}
	return ""
}

func (h headers) Set(key, value string) {
	if i := h.index(key); i >= 0 {
		h.msg.Headers[i].Value = []byte(value)
		return
	}
	h.msg.Headers = append(h.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (h headers) Keys() []string {
	keys := make([]string, 0, len(h.msg.Headers))
	for _, hdr := range h.msg.Headers {
		keys = append(keys, hdr.Key)
	}
	return keys
}

func (h headers) index(key string) int {
	for i, hdr := range h.msg.Headers {
		if hdr.Key == key {
			return i
		}
	}
	return -1
}
