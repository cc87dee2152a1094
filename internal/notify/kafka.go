package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

const DefaultTopic = "consigncrew.order-notifications"

// envelope is the wire format published to the notifications topic.
type envelope struct {
	Recipient string            `json:"recipient"`
	Kind      string            `json:"kind"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// KafkaSink publishes notifications to a Kafka topic keyed by recipient.
// Produce errors surface through the promise and are logged by the caller's
// notify path; the send itself does not wait for acknowledgement.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

func (s *KafkaSink) Send(ctx context.Context, recipient, kind string, data map[string]string) error {
	value, err := json.Marshal(envelope{
		Recipient: recipient,
		Kind:      kind,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(recipient),
		Value: value,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("notification publish failed",
				slog.String("kind", kind),
				slog.String("error", err.Error()),
			)
		}
	})
	return nil
}

// Close flushes buffered records and releases the client.
func (s *KafkaSink) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Flush(ctx)
	s.client.Close()
}
