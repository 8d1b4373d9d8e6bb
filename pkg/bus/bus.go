package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/LoansBot/loansbot/pkg/logger"
)

// ExchangeName is the topic exchange every lifecycle event flows through.
const ExchangeName = "events"

// Config represents broker configuration
type Config struct {
	URL string
}

// Bus wraps an AMQP connection and provides topic publishing and queue
// subscription for the worker fleet.
type Bus struct {
	conn   *amqp.Connection
	logger *logger.Logger

	mu      sync.Mutex
	pubCh   *amqp.Channel
	pubInit bool
}

// Connect dials the broker, making up to five attempts with exponential
// backoff before giving up.
func Connect(ctx context.Context, config Config, log *logger.Logger) (*Bus, error) {
	var conn *amqp.Connection
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			log.Warn(fmt.Sprintf("broker connect failed, retrying (attempt %d/5)", attempt+1))
			select {
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		conn, err = amqp.Dial(config.URL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	return &Bus{conn: conn, logger: log}, nil
}

// Close closes the connection and all channels derived from it
func (b *Bus) Close() error {
	return b.conn.Close()
}

// Channel opens a fresh channel on the shared connection
func (b *Bus) Channel() (*amqp.Channel, error) {
	return b.conn.Channel()
}

func (b *Bus) publisherChannel() (*amqp.Channel, error) {
	if b.pubInit && !b.pubCh.IsClosed() {
		return b.pubCh, nil
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	b.pubCh = ch
	b.pubInit = true
	return ch, nil
}

// Publish JSON-encodes payload and publishes it on the events topic
// exchange with the given routing key.
func (b *Bus) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.publisherChannel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// PublishQueue JSON-encodes payload and publishes it directly to a named
// queue via the default exchange. The queue is declared if missing.
func (b *Bus) PublishQueue(ctx context.Context, queue string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.publisherChannel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}
