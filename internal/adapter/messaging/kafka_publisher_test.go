package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/rl1809/inventory/internal/core/domain"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestPublishTransaction(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	at := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

	tx := domain.Transaction{ID: 7, Kind: domain.TransactionKindExit, Quantity: 2, ProductCode: "D1", OccurredAt: at}
	require.NoError(t, p.PublishTransaction(context.Background(), tx, 3))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "D1", string(msg.Key))

	var event TransactionEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, int64(7), event.TransactionID)
	assert.Equal(t, domain.TransactionKindExit, event.Kind)
	assert.Equal(t, 3, event.Stock)
	assert.True(t, event.OccurredAt.Equal(at))
	assert.NotEmpty(t, event.EventID)
}

func TestPublishTransaction_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "process")
	defer span.End()

	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	require.NoError(t, p.PublishTransaction(ctx, domain.Transaction{ID: 1, Kind: domain.TransactionKindEntry, ProductCode: "D1"}, 1))

	headers := map[string]string{}
	for _, h := range w.messages[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Contains(t, headers["traceparent"], span.SpanContext().TraceID().String())
	assert.Equal(t, "inventory.transaction.processed", headers["event-type"])
}

func TestPublishTransaction_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("leader not available")}}

	err := p.PublishTransaction(context.Background(), domain.Transaction{ProductCode: "D1"}, 0)
	assert.ErrorContains(t, err, "write event")
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, (&KafkaPublisher{writer: w}).Close())
	assert.True(t, w.closed)
}
