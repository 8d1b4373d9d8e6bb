package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/pkg/bus"
	"github.com/LoansBot/loansbot/pkg/logger"
)

// EventHandler processes one decoded event payload.
type EventHandler func(ctx context.Context, body []byte) error

// ListenEvent subscribes an exclusive anonymous queue to the events topic
// exchange with the given pattern and processes matching events until the
// context is cancelled. Each message is acked after its handler succeeds; a
// handler error nacks without requeue and ends the loop, so the supervisor
// can tear the fleet down and restart.
//
// Connection lifecycle between messages is delegated to the shared pools,
// which covers both the per-message and keepalive consumer styles.
func ListenEvent(ctx context.Context, b *bus.Bus, pattern string, log *logger.Logger, handler EventHandler) error {
	sub, err := b.SubscribeTopic(pattern)
	if err != nil {
		return err
	}
	defer sub.Close()

	log.Debug("successfully booted up", zap.String("pattern", pattern))

	for {
		delivery, err := sub.Next(ctx, bus.InactivityHeartbeat)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if delivery == nil {
			continue
		}

		if err := handler(ctx, delivery.Body); err != nil {
			log.Error("event handler failed",
				zap.String("pattern", pattern),
				zap.Error(err),
			)
			delivery.Nack(false, false)
			return fmt.Errorf("handler for %s: %w", pattern, err)
		}
		if err := delivery.Ack(false); err != nil {
			return fmt.Errorf("ack event on %s: %w", pattern, err)
		}
	}
}

// DecodeEvent unmarshals a JSON event body into dest.
func DecodeEvent(body []byte, dest interface{}) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

// RunEvery invokes fn, then repeats each time the interval elapses, until
// the context is cancelled. Errors from fn end the loop.
func RunEvery(ctx context.Context, interval time.Duration, fn func(context.Context) error) error {
	for {
		if err := fn(ctx); err != nil {
			return err
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil
		}
	}
}

// RunDailyAt sleeps until the next occurrence of hour:minute UTC, invokes
// fn, and repeats until the context is cancelled.
func RunDailyAt(ctx context.Context, hour, minute int, fn func(context.Context) error) error {
	for {
		if err := sleepUntil(ctx, hour, minute); err != nil {
			return nil
		}
		if err := fn(ctx); err != nil {
			return err
		}
	}
}

func sleepUntil(ctx context.Context, hour, minute int) error {
	now := time.Now().UTC()
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	select {
	case <-time.After(time.Until(target)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
