// Package notify delivers best-effort notifications about quote and tracking activity.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/suteetoe/tradeflow/pkg/config"
	"github.com/suteetoe/tradeflow/prometheus"
	"go.uber.org/zap"
)

// Notification types
const (
	TypeQuoteSubmitted = "quote_submitted"
	TypeQuoteAccepted  = "quote_accepted"
	TypeQuoteRejected  = "quote_rejected"
	TypeTrackingUpdate = "tracking_update"
)

// Notification is the message handed to a transport
type Notification struct {
	Type         string                 `json:"type"`
	ShipmentID   string                 `json:"shipment_id"`
	RecipientIDs []string               `json:"recipient_ids"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Notifier is a notification transport
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}

// New builds the transport selected by cfg.Driver
func New(ctx context.Context, cfg *config.NotifyConfig, log *zap.Logger) (Notifier, error) {
	switch cfg.Driver {
	case "rabbitmq":
		return NewRabbitNotifier(ctx, cfg.AMQPURL, cfg.Exchange)
	case "kafka":
		return NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "log", "":
		return NewLogNotifier(log), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}

// LogNotifier writes notifications to the log only
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("Notification",
		zap.String("type", n.Type),
		zap.String("shipment_id", n.ShipmentID),
		zap.Strings("recipients", n.RecipientIDs))
	return nil
}

func (l *LogNotifier) Close() error { return nil }

// Dispatcher sends notifications in the background. Delivery failures are logged and
// never reported back to the caller.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifier: n, timeout: timeout, logger: log}
}

// Send queues n for delivery and returns immediately
func (d *Dispatcher) Send(n Notification) {
	if d == nil || d.notifier == nil {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Notify(ctx, n); err != nil {
			d.logger.Warn("Failed to deliver notification",
				zap.String("type", n.Type),
				zap.String("shipment_id", n.ShipmentID),
				zap.Error(err))
			prometheus.RecordNotification(n.Type, "failed")
			return
		}
		prometheus.RecordNotification(n.Type, "sent")
	}()
}

// Wait blocks until every queued notification finished
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

// Close waits for pending sends and closes the transport
func (d *Dispatcher) Close() error {
	if d == nil || d.notifier == nil {
		return nil
	}
	d.wg.Wait()
	return d.notifier.Close()
}
