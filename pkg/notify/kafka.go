package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the notifier uses
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes notifications to a topic, keyed by shipment so a shipment's
// notifications stay ordered within a partition
type KafkaNotifier struct {
	writer Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}
}

// NewKafkaNotifierWithWriter allows injecting a test writer
func NewKafkaNotifierWithWriter(w Writer) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.ShipmentID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(n.Type)},
		},
	})
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
