package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/port"
)

var _ port.EventPublisher = (*KafkaPublisher)(nil)

// TransactionEvent is the message published for every processed stock movement.
type TransactionEvent struct {
	EventID       string                 `json:"eventId"`
	TransactionID int64                  `json:"transactionId"`
	Kind          domain.TransactionKind `json:"kind"`
	ProductCode   string                 `json:"productCode"`
	Quantity      int                    `json:"quantity"`
	OccurredAt    time.Time              `json:"occurredAt"`
	Stock         int                    `json:"stock"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishTransaction writes the event keyed by product code, so movements of one
// product stay ordered within a partition. The caller's trace context travels in the headers.
func (p *KafkaPublisher) PublishTransaction(ctx context.Context, t domain.Transaction, stock int) error {
	payload, err := json.Marshal(TransactionEvent{
		EventID:       uuid.NewString(),
		TransactionID: t.ID,
		Kind:          t.Kind,
		ProductCode:   t.ProductCode,
		Quantity:      t.Quantity,
		OccurredAt:    t.OccurredAt,
		Stock:         stock,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier)+1)
	headers = append(headers, kafka.Header{Key: "event-type", Value: []byte("inventory.transaction.processed")})
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(t.ProductCode),
		Value:   payload,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
