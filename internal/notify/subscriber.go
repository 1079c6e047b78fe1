package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Subscriber relays ready notifications from Redis to a local Waiter.
type Subscriber struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewSubscriber creates a Subscriber. An empty channel uses DefaultChannel.
func NewSubscriber(redisURL, channel string, logger *slog.Logger) (*Subscriber, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		rdb:     redis.NewClient(opts),
		channel: channel,
		logger:  logger.With("component", "notify"),
	}, nil
}

// Run blocks, delivering every message to handler until ctx ends.
func (s *Subscriber) Run(ctx context.Context, handler func(ReadyMessage)) error {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info("Subscribed to ready notifications", "channel", s.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			var ready ReadyMessage
			if err := json.Unmarshal([]byte(msg.Payload), &ready); err != nil {
				s.logger.Error("Failed to unmarshal ready message", "error", err)
				continue
			}
			if ready.Key == "" {
				s.logger.Warn("Ready message without key")
				continue
			}
			handler(ready)
		}
	}
}

// Close closes the Redis client connection.
func (s *Subscriber) Close() error {
	return s.rdb.Close()
}

// Start runs a Subscriber in the background feeding waiter and returns a
// stop function.
func Start(redisURL, channel string, waiter *Waiter, logger *slog.Logger) (stop func(), err error) {
	sub, err := NewSubscriber(redisURL, channel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ready subscriber: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := sub.Run(ctx, func(m ReadyMessage) {
			n := waiter.Notify(m.Key)
			sub.logger.Debug("Ready notification delivered", "snapshot_id", m.Key, "waiters", n)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			sub.logger.Error("Ready subscriber stopped with error", "error", err)
		}
	}()

	return func() {
		cancel()
		sub.Close()
	}, nil
}
