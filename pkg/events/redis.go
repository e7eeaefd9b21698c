package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bmadcode/courier/pkg/logger"
)

// DefaultRedisChannel is the pub/sub channel events are published on.
const DefaultRedisChannel = "courier:events"

// RedisPublisher publishes events as JSON over Redis pub/sub so that
// collaborators in other processes can react to delivery outcomes.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher creates a publisher on channel, or DefaultRedisChannel when empty.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Forward relays events received on the Redis channel into dst until ctx is done.
// Undecodable messages are logged and skipped.
func (p *RedisPublisher) Forward(ctx context.Context, dst Publisher, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribe %s: %w", p.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.WarnContext(ctx, "dropping undecodable event",
					logger.Component("events"),
					logger.Error(fmt.Errorf("%w: %w", ErrDecodeFailed, err)),
				)
				continue
			}
			if err := dst.Publish(ctx, event); err != nil {
				log.WarnContext(ctx, "forwarding event failed",
					logger.Component("events"),
					logger.Event(event.Type),
					logger.Error(err),
				)
			}
		}
	}
}
