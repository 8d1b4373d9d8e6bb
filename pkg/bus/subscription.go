package bus

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// InactivityHeartbeat is how long a consumer waits for a delivery before
// reporting that it is still alive and re-entering the wait.
const InactivityHeartbeat = 10 * time.Minute

// Subscription is a consumer over a single queue. It is owned by one
// goroutine at a time.
type Subscription struct {
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery

	// Queue is the name of the queue being consumed
	Queue string
}

// SubscribeTopic declares an exclusive anonymous queue, binds it to the
// events topic exchange with the given pattern, and starts consuming.
func (b *Bus) SubscribeTopic(pattern string) (*Subscription, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	queue, err := ch.QueueDeclare("", false, false, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, pattern, ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind %s to %s: %w", queue.Name, pattern, err)
	}
	return consume(ch, queue.Name)
}

// SubscribeQueue declares the named queue if missing and starts consuming it.
func (b *Bus) SubscribeQueue(queue string) (*Subscription, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return consume(ch, queue)
}

func consume(ch *amqp.Channel, queue string) (*Subscription, error) {
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", queue, err)
	}
	return &Subscription{ch: ch, deliveries: deliveries, Queue: queue}, nil
}

// Next blocks for the next delivery. It returns (nil, nil) when the
// heartbeat elapses with no delivery, so the caller can report liveness and
// call Next again. A closed channel or cancelled context is an error.
func (s *Subscription) Next(ctx context.Context, heartbeat time.Duration) (*amqp.Delivery, error) {
	timer := time.NewTimer(heartbeat)
	defer timer.Stop()

	select {
	case delivery, ok := <-s.deliveries:
		if !ok {
			return nil, fmt.Errorf("consumer channel for %s closed", s.Queue)
		}
		return &delivery, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the consumer and closes its channel
func (s *Subscription) Close() error {
	return s.ch.Close()
}
