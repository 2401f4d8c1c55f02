package corpus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultInvalidationChannel is the channel a scrape run publishes on after
// writing the store.
const DefaultInvalidationChannel = "opportunities:updated"

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// PublishInvalidation signals every watching loader that the data changed.
// It returns the number of subscribers that received the message.
func PublishInvalidation(ctx context.Context, client publisher, channel, reason string) (int64, error) {
	n, err := client.Publish(ctx, channel, reason).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %q: %w", channel, err)
	}
	return n, nil
}

// SubscribeInvalidations subscribes to channel and runs Watch until ctx is
// done. The subscription is closed on return.
func (l *Loader) SubscribeInvalidations(ctx context.Context, client subscriber, channel string) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %q: %w", channel, err)
	}
	return l.Watch(ctx, pubsub.Channel())
}

// Watch invalidates the cache for every message received. It returns nil
// when messages is closed and the context error when ctx is done.
func (l *Loader) Watch(ctx context.Context, messages <-chan *redis.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			l.logger.Debug("data changed signal received",
				zap.String("channel", msg.Channel),
				zap.String("payload", msg.Payload),
			)
			l.Invalidate()
		}
	}
}
