package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/oggyb/matchd/internal/config"
)

// envelope is the wire format published to the push topic. A delivery
// worker downstream resolves channels to device tokens and calls the
// platform push APIs.
type envelope struct {
	Channels []string `json:"channels"`
	Data     Payload  `json:"data"`
}

// KafkaNotifier publishes push envelopes to a Kafka topic.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier builds a producer from config. SASL/TLS are only
// configured when a username is set.
func NewKafkaNotifier(cfg *config.Config) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Broker),
		Topic:        cfg.Kafka.PushTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}

	if cfg.Kafka.Username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{
				Username: cfg.Kafka.Username,
				Password: cfg.Kafka.Password,
			},
			TLS: &tls.Config{},
		}
	}

	return &KafkaNotifier{writer: writer}
}

func (n *KafkaNotifier) Send(ctx context.Context, channels []string, payload Payload) error {
	if len(channels) == 0 {
		return nil
	}

	value, err := json.Marshal(envelope{Channels: channels, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal push envelope: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payload.Type),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish push notification: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// Nop discards every payload. Used when no broker is configured and in
// code paths where delivery is explicitly suppressed.
type Nop struct{}

func (Nop) Send(ctx context.Context, channels []string, payload Payload) error {
	return nil
}
