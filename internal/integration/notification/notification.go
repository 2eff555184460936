// Package notification delivers customer notifications to the external
// notification collaborator.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Template names a customer notification.
type Template string

const (
	TemplateOrderCreated  Template = "upgrade_order_created"
	TemplateConfirmation  Template = "upgrade_confirmation"
	TemplatePaymentFailed Template = "payment_failed"
)

// Message is the collaborator contract.
type Message struct {
	CustomerID string         `json:"customerId"`
	Template   Template       `json:"template"`
	Data       map[string]any `json:"data"`
}

// Notifier sends notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// LogNotifier only logs. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.Info("notification",
		zap.String("customer_id", msg.CustomerID),
		zap.String("template", string(msg.Template)),
		zap.Any("data", msg.Data))
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// KafkaNotifier publishes messages keyed by customer id so one customer's
// notifications stay ordered on a partition.
type KafkaNotifier struct {
	writer      messageWriter
	maxAttempts int
	timeout     time.Duration
	backoff     time.Duration
}

func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaNotifier(w, cfg.MaxAttempts, cfg.WriteTimeout), nil
}

func newKafkaNotifier(w messageWriter, maxAttempts int, timeout time.Duration) *KafkaNotifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &KafkaNotifier{writer: w, maxAttempts: maxAttempts, timeout: timeout, backoff: 100 * time.Millisecond}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	var lastErr error
	backoff := n.backoff
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, n.timeout)
		err := n.writer.WriteMessages(attemptCtx, kafka.Message{
			Key:   []byte(msg.CustomerID),
			Value: value,
			Time:  time.Now().UTC(),
			Headers: []kafka.Header{
				{Key: "template", Value: []byte(msg.Template)},
			},
		})
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == n.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("notification cancelled after %d attempts: %w", attempt, lastErr)
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("notification failed after %d attempts: %w", n.maxAttempts, lastErr)
}

func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
