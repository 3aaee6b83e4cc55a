package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel the notifier uses
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitNotifier publishes notifications to a fanout exchange
type RabbitNotifier struct {
	conn     *amqp.Connection
	ch       Publisher
	exchange string
	mu       sync.Mutex // channels are not safe for concurrent publishing
}

// NewRabbitNotifier dials url and declares a durable fanout exchange
func NewRabbitNotifier(ctx context.Context, url, exchange string) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &RabbitNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

// NewRabbitNotifierWithChannel allows injecting a test publisher
func NewRabbitNotifierWithChannel(ch Publisher, exchange string) *RabbitNotifier {
	return &RabbitNotifier{ch: ch, exchange: exchange}
}

func (r *RabbitNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(ctx,
		r.exchange,
		n.Type, // ignored by fanout, kept for bindings that switch to topic
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    n.CreatedAt,
			Type:         n.Type,
			Body:         body,
		},
	)
}

func (r *RabbitNotifier) Close() error {
	if err := r.ch.Close(); err != nil {
		return err
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
