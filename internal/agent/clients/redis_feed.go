package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"AppStatus/internal/agent/domain"
)

// RedisEventFeed turns JSON messages published on a redis channel into
// status events.
type RedisEventFeed struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisEventFeed(client *redis.Client, channel string, logger *slog.Logger) *RedisEventFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisEventFeed{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Run subscribes and forwards decoded events to out until ctx is done.
// Malformed messages are logged and skipped.
func (f *RedisEventFeed) Run(ctx context.Context, out chan<- domain.Event) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	// ждем подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSubscribe, err)
	}

	f.logger.Info("Subscribed to event channel", "channel", f.channel)
	return f.forward(ctx, pubsub.Channel(), out)
}

func (f *RedisEventFeed) forward(ctx context.Context, messages <-chan *redis.Message, out chan<- domain.Event) error {
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Stopping event feed due to context cancellation")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return ErrFeedClosed
			}

			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				f.logger.Warn("skipping event", "channel", msg.Channel, "error", err)
				continue
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// DecodeEvent parses one JSON event message.
func DecodeEvent(payload []byte) (domain.Event, error) {
	var msg domain.EventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	event, err := msg.ToEvent()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return event, nil
}

// PublishEvent is the producer side of the feed.
func PublishEvent(ctx context.Context, client redis.Cmdable, channel string, msg domain.EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, data).Err()
}
