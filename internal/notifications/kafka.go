package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

var allEvents = eventFilter{corruption: true, completed: true, errors: true}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaService publishes events as JSON records keyed by object identifier.
type KafkaService struct {
	client producer
	filter eventFilter
	now    func() time.Time
}

type kafkaMessage struct {
	Event      Event          `json:"event"`
	Identifier string         `json:"identifier,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewKafkaService connects a producer to brokers with topic as the default
// destination. Every event is published.
func NewKafkaService(brokers []string, topic string) (*KafkaService, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("vigil"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newKafkaService(client, allEvents), nil
}

func newKafkaService(client producer, filter eventFilter) *KafkaService {
	return &KafkaService{client: client, filter: filter, now: time.Now}
}

// Publish implements Service.
func (k *KafkaService) Publish(ctx context.Context, event Event, data Payload) error {
	if k == nil || k.client == nil || !k.filter.allows(event) {
		return nil
	}
	msg := kafkaMessage{
		Event:      event,
		Identifier: payloadString(data, "identifier"),
		Payload:    jsonSafe(data),
		Timestamp:  k.now().UTC(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode kafka notification: %w", err)
	}
	record := &kgo.Record{Value: value}
	if msg.Identifier != "" {
		record.Key = []byte(msg.Identifier)
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce kafka notification: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaService) Close() error {
	if k != nil && k.client != nil {
		k.client.Close()
	}
	return nil
}

func jsonSafe(data Payload) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case error:
			out[key] = v.Error()
		case time.Duration:
			out[key] = v.String()
		default:
			out[key] = v
		}
	}
	return out
}
