package notify

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"salonbook/backend/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes notifications to one topic, keyed by target user so a
// user's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultQueue
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, n domain.Notification) error {
	body, err := encodeEnvelope(n)
	if err != nil {
		return err
	}
	carrier := &kafkaHeaderCarrier{headers: []kafka.Header{
		{Key: "event_id", Value: []byte(n.ID.String())},
		{Key: "event_type", Value: []byte(n.Type)},
	}}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(n.UserID),
		Value:   body,
		Headers: carrier.headers,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type kafkaHeaderCarrier struct {
	headers []kafka.Header
}

func (c *kafkaHeaderCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *kafkaHeaderCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *kafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
