package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher sends ready notifications over Redis pub/sub.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher creates a Publisher. An empty channel uses DefaultChannel.
func NewPublisher(redisURL, channel string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: redis.NewClient(opts), channel: channel}, nil
}

// PublishReady announces that key is ready. Delivery is best effort: a
// subscriber that is not connected never sees the message.
func (p *Publisher) PublishReady(ctx context.Context, key string) error {
	payload, err := encodeReady(key)
	if err != nil {
		return fmt.Errorf("failed to marshal ready message: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish ready message: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
